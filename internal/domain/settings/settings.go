package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"staffbook/internal/platform/docstore"
	"staffbook/internal/platform/logger"
)

const collection = "settings"

var Categories = []string{"skills", "groups", "classes", "sections", "positions", "schedules"}

var (
	ErrUnknownCategory = errors.New("unknown settings category")
	ErrDuplicateOption = errors.New("option already exists")
	ErrBlankOption     = errors.New("option must not be blank")
	ErrOptionNotFound  = errors.New("option not found")
	ErrInvalidOption   = errors.New("value is not one of the category options")
)

// Service keeps the dropdown options of each category in settings/<category>.
type Service struct {
	store *docstore.Store
}

func NewService(store *docstore.Store) *Service {
	return &Service{store: store}
}

func validCategory(category string) error {
	if !slices.Contains(Categories, category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return nil
}

// All returns every category, with an empty list for categories that have
// no options yet.
func (s *Service) All(ctx context.Context) (map[string][]string, error) {
	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(Categories))
	for _, c := range Categories {
		out[c] = []string{}
	}
	for _, doc := range docs {
		if _, known := out[doc.Key]; known {
			out[doc.Key] = optionList(doc.Data)
		}
	}
	return out, nil
}

func (s *Service) Options(ctx context.Context, category string) ([]string, error) {
	if err := validCategory(category); err != nil {
		return nil, err
	}
	value, ok, err := s.store.Get(ctx, docstore.Join(collection, category))
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	doc, _ := value.(map[string]any)
	return optionList(doc), nil
}

func (s *Service) AddOption(ctx context.Context, category, value string) error {
	if err := validCategory(category); err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return ErrBlankOption
	}
	err := s.edit(ctx, category, func(options []string) ([]string, error) {
		if slices.Contains(options, value) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateOption, value)
		}
		return append(options, value), nil
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info().Str("category", category).Str("option", value).Msg("settings option added")
	return nil
}

func (s *Service) RemoveOption(ctx context.Context, category, value string) error {
	if err := validCategory(category); err != nil {
		return err
	}
	err := s.edit(ctx, category, func(options []string) ([]string, error) {
		i := slices.Index(options, value)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrOptionNotFound, value)
		}
		return slices.Delete(options, i, i+1), nil
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info().Str("category", category).Str("option", value).Msg("settings option removed")
	return nil
}

// ValidateOption accepts an empty value, any value of a category without
// options, and otherwise only one of the category's options.
func (s *Service) ValidateOption(ctx context.Context, category, value string) error {
	if value == "" {
		return nil
	}
	options, err := s.Options(ctx, category)
	if err != nil {
		return err
	}
	if len(options) == 0 || slices.Contains(options, value) {
		return nil
	}
	return fmt.Errorf("%w: %q not in %s", ErrInvalidOption, value, category)
}

func (s *Service) edit(ctx context.Context, category string, fn func([]string) ([]string, error)) error {
	return s.store.Transact(ctx, func(txn *docstore.Txn) error {
		doc, _, err := txn.Document(collection, category)
		if err != nil {
			return err
		}
		next, err := fn(optionList(doc))
		if err != nil {
			return err
		}
		return txn.Set(docstore.Join(collection, category, "options"), toAny(next))
	})
}

func optionList(doc map[string]any) []string {
	raw, _ := doc["options"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
