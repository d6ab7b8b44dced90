package ops

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
)

// Pagination limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// now is the clock used for savedAt and export timestamps.
var now = time.Now

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateEvent checks the fields a note needs from its event before it can
// be saved: a 64-char hex id and pubkey and non-negative kind and timestamp.
func ValidateEvent(e note.Event) error {
	if err := validatorInstance().Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("event.%s failed %q", jsonFieldName(fe.Field()), fe.Tag()))
			}
			return errors.NewInvalidRequest("invalid event: " + strings.Join(msgs, "; "))
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid event: %v", err))
	}
	return nil
}

func jsonFieldName(field string) string {
	switch field {
	case "CreatedAt":
		return "created_at"
	default:
		return strings.ToLower(field)
	}
}

// cleanCollection trims a collection name and rejects blank names.
func cleanCollection(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.NewInvalidRequest(field + " must not be empty")
	}
	return name, nil
}

// cleanID trims a note id and rejects blank ids.
func cleanID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}

func nowMillis() int64 {
	return now().UnixMilli()
}
