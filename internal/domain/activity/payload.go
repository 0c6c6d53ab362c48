package activity

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
)

var validate = validator.New()

// ParsePayload decodes a loosely typed payload into the struct for t
// and validates it. Unknown types yield shared.ErrUnknownActivity.
func ParsePayload(t Type, raw map[string]any) (any, error) {
	switch t {
	case TypeQuizCompleted:
		return decode[QuizPayload](t, raw)
	case TypeFlashcardReview:
		return decode[FlashcardPayload](t, raw)
	case TypeEvaluationSubmitted:
		return decode[EvaluationPayload](t, raw)
	case TypeGuideCompleted:
		return decode[GuidePayload](t, raw)
	}
	return nil, shared.WrapError("activity", "ParsePayload", shared.ErrInvalidInput,
		fmt.Sprintf("unknown activity type %q", t), shared.ErrUnknownActivity)
}

func decode[P any](t Type, raw map[string]any) (P, error) {
	var out P

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(raw); err != nil {
		return out, shared.WrapError("activity", "ParsePayload", shared.ErrValidation,
			fmt.Sprintf("cannot decode %s payload", t), err)
	}

	if err := validate.Struct(out); err != nil {
		return out, shared.WrapError("activity", "ParsePayload", shared.ErrValidation,
			fmt.Sprintf("invalid %s payload: %s", t, describe(err)), shared.ErrInvalidPayload)
	}
	return out, nil
}

func describe(err error) string {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, e := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed %s", e.Field(), e.Tag()))
	}
	return strings.Join(msgs, "; ")
}
