package builder

import (
	"errors"
	"fmt"

	"github.com/hupe1980/lingodb/model"
)

// ErrSealed is returned when a Builder is used after it produced a file.
var ErrSealed = errors.New("builder: already built")

// DuplicateError reports a node whose word, layer, and position repeat an
// earlier node.
type DuplicateError struct {
	Word     string
	Layer    model.Layer
	Position model.Coordinate
	Existing model.NodeID
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("word %q already added at %v in layer %s as node %d", e.Word, e.Position, e.Layer, e.Existing)
}

// Unwrap returns model.ErrDuplicateWordPosition.
func (e *DuplicateError) Unwrap() error { return model.ErrDuplicateWordPosition }
