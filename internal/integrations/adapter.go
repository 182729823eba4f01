package integrations

import (
	"context"

	"tollfee/internal/model"
)

// Source is a feed of passage records from outside the API, such as a roadside
// export file.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.PassageInput, error)
}
