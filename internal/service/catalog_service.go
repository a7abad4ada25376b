package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/listing"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/validator"
)

// CatalogService backs the dashboard list and form views: fetch once,
// filter and page locally, refetch after every mutation.
type CatalogService struct {
	client *client.Client
	kinds  map[client.Resource]resourceKind
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(c *client.Client) *CatalogService {
	return &CatalogService{
		client: c,
		kinds: map[client.Resource]resourceKind{
			client.ResourceUsers:     kind[model.User]{resource: client.ResourceUsers, spec: userSpec},
			client.ResourceExams:     kind[model.ExamSummary]{resource: client.ResourceExams, spec: examSpec},
			client.ResourceMaterials: kind[model.Material]{resource: client.ResourceMaterials, spec: materialSpec},
			client.ResourceBadges:    kind[model.Badge]{resource: client.ResourceBadges, spec: badgeSpec},
		},
	}
}

// StudentExams returns one page of the exams available to a student.
func (s *CatalogService) StudentExams(ctx context.Context, studentID string, q listing.Query) ([]model.ExamSummary, *response.Pagination, error) {
	exams, err := s.client.ListStudentExams(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	page, p := listing.Apply(exams, q, examSpec)
	return page, p, nil
}

// LookupExam finds the exam listed under code, ignoring case.
func (s *CatalogService) LookupExam(ctx context.Context, code string) (*model.ExamSummary, error) {
	code = strings.TrimSpace(code)
	exams, err := s.client.ListExams(ctx, code)
	if err != nil {
		return nil, err
	}
	for i := range exams {
		if strings.EqualFold(exams[i].Code, code) {
			return &exams[i], nil
		}
	}
	return nil, fmt.Errorf("lookup %s: %w", code, ErrExamNotListed)
}

// Analytics returns a student's performance summary.
func (s *CatalogService) Analytics(ctx context.Context, studentID string) (*model.Analytics, error) {
	return s.client.GetAnalytics(ctx, studentID)
}

// Badges returns a student's badges.
func (s *CatalogService) Badges(ctx context.Context, studentID string) ([]model.Badge, error) {
	badges, err := s.client.ListBadges(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if badges == nil {
		badges = []model.Badge{}
	}
	return badges, nil
}

// List returns one page of an admin resource.
func (s *CatalogService) List(ctx context.Context, r client.Resource, q listing.Query) (interface{}, *response.Pagination, error) {
	k, err := s.lookup(r)
	if err != nil {
		return nil, nil, err
	}
	return k.list(ctx, s.client, q)
}

// Get returns one record of an admin resource.
func (s *CatalogService) Get(ctx context.Context, r client.Resource, id string) (interface{}, error) {
	k, err := s.lookup(r)
	if err != nil {
		return nil, err
	}
	return k.get(ctx, s.client, id)
}

// Create validates body against the resource's form and creates it.
func (s *CatalogService) Create(ctx context.Context, r client.Resource, body []byte) (interface{}, error) {
	k, err := s.lookup(r)
	if err != nil {
		return nil, err
	}
	record, err := k.decode(body)
	if err != nil {
		return nil, err
	}
	return k.create(ctx, s.client, record)
}

// Update validates body and replaces record id.
func (s *CatalogService) Update(ctx context.Context, r client.Resource, id string, body []byte) (interface{}, error) {
	k, err := s.lookup(r)
	if err != nil {
		return nil, err
	}
	record, err := k.decode(body)
	if err != nil {
		return nil, err
	}
	return k.update(ctx, s.client, id, record)
}

// Delete removes record id.
func (s *CatalogService) Delete(ctx context.Context, r client.Resource, id string) error {
	if _, err := s.lookup(r); err != nil {
		return err
	}
	return s.client.DeleteResource(ctx, r, id)
}

func (s *CatalogService) lookup(r client.Resource) (resourceKind, error) {
	k, ok := s.kinds[r]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", r)
	}
	return k, nil
}

type resourceKind interface {
	list(ctx context.Context, c *client.Client, q listing.Query) (interface{}, *response.Pagination, error)
	get(ctx context.Context, c *client.Client, id string) (interface{}, error)
	decode(body []byte) (interface{}, error)
	create(ctx context.Context, c *client.Client, record interface{}) (interface{}, error)
	update(ctx context.Context, c *client.Client, id string, record interface{}) (interface{}, error)
}

type kind[T any] struct {
	resource client.Resource
	spec     listing.Spec[T]
}

func (k kind[T]) list(ctx context.Context, c *client.Client, q listing.Query) (interface{}, *response.Pagination, error) {
	var items []T
	if err := c.ListResource(ctx, k.resource, &items); err != nil {
		return nil, nil, err
	}
	page, p := listing.Apply(items, q, k.spec)
	return page, p, nil
}

func (k kind[T]) get(ctx context.Context, c *client.Client, id string) (interface{}, error) {
	var out T
	if err := c.GetResource(ctx, k.resource, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (k kind[T]) decode(body []byte) (interface{}, error) {
	var record T
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"detail": err.Error()}}
	}
	if fields := validator.Struct(&record); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}
	return &record, nil
}

func (k kind[T]) create(ctx context.Context, c *client.Client, record interface{}) (interface{}, error) {
	var out T
	if err := c.CreateResource(ctx, k.resource, record, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (k kind[T]) update(ctx context.Context, c *client.Client, id string, record interface{}) (interface{}, error) {
	var out T
	if err := c.UpdateResource(ctx, k.resource, id, record, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var userSpec = listing.Spec[model.User]{
	Text: func(u model.User) []string { return []string{u.Name, u.Email, u.Batch, strings.Join(u.Roles, " ")} },
	Less: map[string]func(a, b model.User) bool{
		"name":      func(a, b model.User) bool { return a.Name < b.Name },
		"email":     func(a, b model.User) bool { return a.Email < b.Email },
		"createdAt": func(a, b model.User) bool { return a.CreatedAt.Before(b.CreatedAt) },
	},
}

var examSpec = listing.Spec[model.ExamSummary]{
	Text: func(e model.ExamSummary) []string { return []string{e.Code, e.Name, e.Batch} },
	Less: map[string]func(a, b model.ExamSummary) bool{
		"examCode": func(a, b model.ExamSummary) bool { return a.Code < b.Code },
		"examName": func(a, b model.ExamSummary) bool { return a.Name < b.Name },
		"duration": func(a, b model.ExamSummary) bool { return a.DurationMinutes < b.DurationMinutes },
	},
}

var materialSpec = listing.Spec[model.Material]{
	Text: func(m model.Material) []string { return []string{m.Title, m.Subject, m.Batch} },
	Less: map[string]func(a, b model.Material) bool{
		"title":     func(a, b model.Material) bool { return a.Title < b.Title },
		"subject":   func(a, b model.Material) bool { return a.Subject < b.Subject },
		"createdAt": func(a, b model.Material) bool { return a.CreatedAt.Before(b.CreatedAt) },
	},
}

var badgeSpec = listing.Spec[model.Badge]{
	Text: func(b model.Badge) []string { return []string{b.Name, b.Description} },
	Less: map[string]func(a, b model.Badge) bool{
		"name":   func(a, b model.Badge) bool { return a.Name < b.Name },
		"points": func(a, b model.Badge) bool { return a.Points < b.Points },
	},
}
