package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/notabene00/yandex-weather/internal/config"
	"github.com/notabene00/yandex-weather/internal/models"
	"github.com/notabene00/yandex-weather/internal/store"
	"github.com/notabene00/yandex-weather/internal/weather"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	Version = 1

	StepIDUser = "user"
	StepIDInit = "init"

	FieldName      = "name"
	FieldAPIKey    = "api_key"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
)

var (
	ErrAlreadyConfigured = errors.New("already configured")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEntryNotFound     = errors.New("entry not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

type ResultType string

const (
	ResultForm        ResultType = "form"
	ResultCreateEntry ResultType = "create_entry"
)

type Field struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`
}

type Form struct {
	StepID string  `json:"step_id"`
	Fields []Field `json:"data_schema"`
}

// Result is what a step returns: a form to show, or the stored entry.
type Result struct {
	Type  ResultType    `json:"type"`
	Form  *Form         `json:"form,omitempty"`
	Entry *models.Entry `json:"entry,omitempty"`
}

// UserInput is the submitted form. Nil coordinates use the form defaults.
type UserInput struct {
	Name      string   `json:"name"`
	APIKey    string   `json:"api_key"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type Flow struct {
	store  store.Store
	home   config.HomeConfig
	logger *logrus.Logger
	now    func() time.Time
}

func New(st store.Store, home config.HomeConfig, logger *logrus.Logger) *Flow {
	return &Flow{
		store:  st,
		home:   home,
		logger: logger,
		now:    time.Now,
	}
}

// UniqueID identifies a location.
func UniqueID(latitude, longitude float64) string {
	return strconv.FormatFloat(latitude, 'f', -1, 64) + "," + strconv.FormatFloat(longitude, 'f', -1, 64)
}

// StepUser shows the user form for nil input, otherwise creates an entry.
func (f *Flow) StepUser(ctx context.Context, input *UserInput) (*Result, error) {
	if input == nil {
		return &Result{Type: ResultForm, Form: f.UserForm()}, nil
	}
	entry, err := f.CreateEntry(ctx, *input)
	if err != nil {
		return nil, err
	}
	return &Result{Type: ResultCreateEntry, Entry: entry}, nil
}

// StepInit shows the options form prefilled from the entry for nil input,
// otherwise replaces the entry data.
func (f *Flow) StepInit(ctx context.Context, entryID string, input *UserInput) (*Result, error) {
	if input == nil {
		form, err := f.OptionsForm(ctx, entryID)
		if err != nil {
			return nil, err
		}
		return &Result{Type: ResultForm, Form: form}, nil
	}
	entry, err := f.UpdateOptions(ctx, entryID, *input)
	if err != nil {
		return nil, err
	}
	return &Result{Type: ResultCreateEntry, Entry: entry}, nil
}

func (f *Flow) UserForm() *Form {
	return &Form{
		StepID: StepIDUser,
		Fields: fields(weather.DefaultName, "", f.home.Latitude, f.home.Longitude),
	}
}

func (f *Flow) CreateEntry(ctx context.Context, input UserInput) (*models.Entry, error) {
	data, err := f.normalize(input)
	if err != nil {
		return nil, err
	}

	uniqueID := UniqueID(*data.Latitude, *data.Longitude)
	if _, err := f.store.FindByUniqueID(ctx, uniqueID); err == nil {
		return nil, fmt.Errorf("location %s: %w", uniqueID, ErrAlreadyConfigured)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := f.now().UTC()
	entry := models.Entry{
		ID:        uuid.NewString(),
		UniqueID:  uniqueID,
		Title:     data.Name,
		Data:      data,
		Version:   Version,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.store.SaveEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save entry: %w", err)
	}

	f.logger.Infof("Created entry %s (%s) at %s", entry.ID, entry.Title, uniqueID)
	return &entry, nil
}

func (f *Flow) OptionsForm(ctx context.Context, entryID string) (*Form, error) {
	entry, err := f.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	lat, lon := entry.Data.Coordinates(f.home.Latitude, f.home.Longitude)
	return &Form{
		StepID: StepIDInit,
		Fields: fields(entry.Data.Name, entry.Data.APIKey, lat, lon),
	}, nil
}

// UpdateOptions replaces the entry data and bumps its version. The unique ID
// and title are kept.
func (f *Flow) UpdateOptions(ctx context.Context, entryID string, input UserInput) (*models.Entry, error) {
	entry, err := f.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	data, err := f.normalize(input)
	if err != nil {
		return nil, err
	}

	entry.Data = data
	entry.Version++
	entry.UpdatedAt = f.now().UTC()
	if err := f.store.UpdateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	f.logger.Infof("Updated options of entry %s (version %d)", entry.ID, entry.Version)
	return &entry, nil
}

func (f *Flow) RemoveEntry(ctx context.Context, entryID string) error {
	err := f.store.DeleteEntry(ctx, entryID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", entryID, ErrEntryNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to remove entry: %w", err)
	}
	f.logger.Infof("Removed entry %s", entryID)
	return nil
}

func (f *Flow) getEntry(ctx context.Context, entryID string) (models.Entry, error) {
	entry, err := f.store.GetEntry(ctx, entryID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Entry{}, fmt.Errorf("%s: %w", entryID, ErrEntryNotFound)
	}
	return entry, err
}

func (f *Flow) normalize(input UserInput) (models.EntryData, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = weather.DefaultName
	}

	apiKey := strings.TrimSpace(input.APIKey)
	if apiKey == "" {
		return models.EntryData{}, &ValidationError{Field: FieldAPIKey, Reason: "required"}
	}

	lat, lon := f.home.Latitude, f.home.Longitude
	if input.Latitude != nil {
		lat = *input.Latitude
	}
	if input.Longitude != nil {
		lon = *input.Longitude
	}
	if lat < -90 || lat > 90 {
		return models.EntryData{}, &ValidationError{Field: FieldLatitude, Reason: "must be between -90 and 90"}
	}
	if lon < -180 || lon > 180 {
		return models.EntryData{}, &ValidationError{Field: FieldLongitude, Reason: "must be between -180 and 180"}
	}

	return models.EntryData{
		Name:      name,
		APIKey:    apiKey,
		Latitude:  &lat,
		Longitude: &lon,
	}, nil
}

func fields(name, apiKey string, lat, lon float64) []Field {
	apiKeyField := Field{Name: FieldAPIKey, Type: "string", Required: true}
	if apiKey != "" {
		apiKeyField.Default = apiKey
	}
	return []Field{
		{Name: FieldName, Type: "string", Required: true, Default: name},
		apiKeyField,
		{Name: FieldLatitude, Type: "float", Default: lat},
		{Name: FieldLongitude, Type: "float", Default: lon},
	}
}
