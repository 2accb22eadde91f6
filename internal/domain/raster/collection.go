package raster

import (
	"context"
	"iter"
	"time"
)

// SceneRef identifies one image of an archive without loading its pixels.
type SceneRef struct {
	ID       string    `json:"id"`
	Acquired time.Time `json:"acquired"`
	// Location is archive specific (file path or object key).
	Location string `json:"location,omitempty"`
}

// OpenFunc materialises the pixels of a scene.
type OpenFunc func(ctx context.Context, ref SceneRef) (*Image, error)

// MapFunc transforms an image. It must not modify its argument.
type MapFunc func(img *Image) (*Image, error)

// Collection is an ordered, lazy and restartable sequence of images sharing
// a band schema. Nothing is opened until the sequence is iterated, and every
// iteration opens the scenes again.
type Collection struct {
	schema []string
	refs   []SceneRef
	open   OpenFunc
	maps   []MapFunc
}

// NewCollection builds a collection over refs. schema lists the band names every image carries.
func NewCollection(schema []string, refs []SceneRef, open OpenFunc) *Collection {
	return &Collection{
		schema: append([]string(nil), schema...),
		refs:   append([]SceneRef(nil), refs...),
		open:   open,
	}
}

// FilterDate keeps scenes acquired in [start, end). start >= end yields an empty collection.
func (c *Collection) FilterDate(start, end time.Time) *Collection {
	out := c.derive()
	out.refs = out.refs[:0]
	if !start.Before(end) {
		return out
	}
	for _, r := range c.refs {
		if !r.Acquired.Before(start) && r.Acquired.Before(end) {
			out.refs = append(out.refs, r)
		}
	}
	return out
}

// Map returns a collection that applies fn to every element during iteration.
// Elements are never dropped by mapping.
func (c *Collection) Map(fn MapFunc) *Collection {
	out := c.derive()
	out.maps = append(out.maps, fn)
	return out
}

// Len returns the number of scenes in the collection.
func (c *Collection) Len() int { return len(c.refs) }

// Refs returns the scene references in order.
func (c *Collection) Refs() []SceneRef { return append([]SceneRef(nil), c.refs...) }

// Schema returns the band names shared by the collection.
func (c *Collection) Schema() []string { return append([]string(nil), c.schema...) }

// All yields every image with all mapped functions applied. Iteration stops
// after the first error or when ctx is done.
func (c *Collection) All(ctx context.Context) iter.Seq2[*Image, error] {
	return func(yield func(*Image, error) bool) {
		for _, ref := range c.refs {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			img, err := c.open(ctx, ref)
			for i := 0; err == nil && i < len(c.maps); i++ {
				img, err = c.maps[i](img)
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(img, nil) {
				return
			}
		}
	}
}

func (c *Collection) derive() *Collection {
	return &Collection{
		schema: c.schema,
		refs:   append([]SceneRef(nil), c.refs...),
		open:   c.open,
		maps:   append([]MapFunc(nil), c.maps...),
	}
}
