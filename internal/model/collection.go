package model

// Collection is an ordered set of annotation ids with a label.
// Deleting a collection never deletes its member annotations.
type Collection struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Items []string `json:"items"`
}

// AddItem appends an annotation id. Adding an already-present id is a no-op.
func (c *Collection) AddItem(annotationID string) {
	for _, id := range c.Items {
		if id == annotationID {
			return
		}
	}
	c.Items = append(c.Items, annotationID)
}

// RemoveItem removes an annotation id, preserving the order of the rest.
func (c *Collection) RemoveItem(annotationID string) {
	for i, id := range c.Items {
		if id == annotationID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

// Size returns the number of member annotations.
func (c *Collection) Size() int {
	return len(c.Items)
}

// Clone returns a deep copy.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = append([]string(nil), c.Items...)
	return &out
}
