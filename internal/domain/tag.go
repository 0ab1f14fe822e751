package domain

// Tag is a label attachable to tickets. Names are unique and case-sensitive.
type Tag struct {
	ID   int64
	Name string
}
