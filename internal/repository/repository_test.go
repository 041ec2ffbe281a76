package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
)

// fakeBackend answers queries and mutations from queued JSON bodies.
type fakeBackend struct {
	client.BackendClient
	queries   []*client.Query
	mutations []*client.Mutation
	answers   []string
	errs      []error
}

func (f *fakeBackend) next(out interface{}) error {
	var (
		body string
		err  error
	)
	if len(f.answers) > 0 {
		body, f.answers = f.answers[0], f.answers[1:]
	}
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	if err != nil {
		return err
	}
	if out == nil || body == "" {
		return nil
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeBackend) Query(_ context.Context, q *client.Query, out interface{}) error {
	f.queries = append(f.queries, q)
	return f.next(out)
}

func (f *fakeBackend) Mutate(_ context.Context, m *client.Mutation, out interface{}) error {
	f.mutations = append(f.mutations, m)
	return f.next(out)
}

func TestOrderCreate(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		wantID string
		wantOK bool
	}{
		{name: "row returned", answer: `[{"id":"o1","total_amount":"1200.00"}]`, wantID: "o1", wantOK: true},
		{name: "empty answer", answer: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{answers: []string{tt.answer}}
			repo := NewOrderRepository(backend)

			order, err := repo.Create(context.Background(), &model.Order{
				ProgramID:   "p1",
				TotalAmount: decimal.RequireFromString("1200"),
			})
			require.NoError(t, err)
			if !tt.wantOK {
				assert.Nil(t, order)
				return
			}
			assert.Equal(t, tt.wantID, order.ID)

			m := backend.mutations[0]
			assert.Equal(t, "orders", m.Table)
			assert.Equal(t, client.MutationInsert, m.Kind)
			assert.True(t, m.Returning)
		})
	}
}

func TestOrderList(t *testing.T) {
	backend := &fakeBackend{answers: []string{`[{"id":"o1"},{"id":"o2"}]`}}
	repo := NewOrderRepository(backend)

	orders, err := repo.List(context.Background(), OrderFilter{
		Status: model.OrderStatusPending,
		Email:  "ada",
		Limit:  20,
		Offset: 40,
	})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	v := backend.queries[0].Values()
	assert.Equal(t, "eq.pending", v.Get("status"))
	assert.Equal(t, "ilike.*ada*", v.Get("customer_email"))
	assert.Equal(t, "created_at.desc", v.Get("order"))
	assert.Equal(t, "20", v.Get("limit"))
	assert.Equal(t, "40", v.Get("offset"))
}

func TestOrderDelete(t *testing.T) {
	backend := &fakeBackend{answers: []string{`[]`, `[{"id":"o1"}]`}}
	repo := NewOrderRepository(backend)

	assert.ErrorIs(t, repo.Delete(context.Background(), "gone"), ErrNotFound)
	assert.NoError(t, repo.Delete(context.Background(), "o1"))
	assert.Equal(t, "eq.o1", backend.mutations[1].Values().Get("id"))
}

func TestProgramUpdate(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		answers  []string
		expected *time.Time
		wantErr  error
	}{
		{name: "applied", answers: []string{`[{"id":"p1","title":"Go"}]`}, expected: &stamp},
		{name: "missing row", answers: []string{`[]`}, wantErr: ErrNotFound},
		{name: "stale write", answers: []string{`[]`, `[{"id":"p1"}]`}, expected: &stamp, wantErr: ErrConflict},
		{name: "stale and deleted", answers: []string{`[]`, `[]`}, expected: &stamp, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{answers: tt.answers}
			repo := NewProgramRepository(backend)

			program, err := repo.Update(context.Background(), "p1", map[string]interface{}{"title": "Go"}, tt.expected)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "Go", program.Title)
			}

			v := backend.mutations[0].Values()
			assert.Equal(t, "eq.p1", v.Get("id"))
			if tt.expected != nil {
				assert.Equal(t, "eq.2024-05-01T10:00:00Z", v.Get("updated_at"))
			} else {
				assert.Empty(t, v.Get("updated_at"))
			}
		})
	}
}

func TestProgramReorder(t *testing.T) {
	backend := &fakeBackend{}
	repo := NewProgramRepository(backend)

	require.NoError(t, repo.Reorder(context.Background(), []string{"b", "a", "c"}))
	require.Len(t, backend.mutations, 3)
	for i, id := range []string{"b", "a", "c"} {
		m := backend.mutations[i]
		assert.Equal(t, "eq."+id, m.Values().Get("id"))
		assert.Equal(t, i, m.Body.(map[string]interface{})["sort_order"])
		assert.False(t, m.Returning)
	}

	backend = &fakeBackend{errs: []error{nil, &client.APIError{Status: http.StatusForbidden}}}
	err := NewProgramRepository(backend).Reorder(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reorder program b")
	assert.Len(t, backend.mutations, 2)
}

func TestProfileCreateExisting(t *testing.T) {
	backend := &fakeBackend{
		answers: []string{"", `[{"id":"u1","email":"ada@example.com","role":"admin"}]`},
		errs:    []error{&client.APIError{Status: http.StatusConflict, Code: "23505"}},
	}
	repo := NewProfileRepository(backend)

	profile, err := repo.Create(context.Background(), &model.Profile{ID: "u1", Email: "ada@example.com", Role: model.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, profile.Role)
	assert.Len(t, backend.queries, 1)
}

func TestBlogListPublished(t *testing.T) {
	backend := &fakeBackend{answers: []string{`[{"id":"b1","slug":"hello","content":"[{\"type\":\"paragraph\",\"text\":\"hi\"}]"}]`}}
	repo := NewBlogRepository(backend)

	posts, err := repo.ListPublished(context.Background(), "c1", 10, 20)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Len(t, posts[0].Content, 1)

	v := backend.queries[0].Values()
	assert.Equal(t, "eq.true", v.Get("is_published"))
	assert.Equal(t, "eq.c1", v.Get("category_id"))
	assert.Equal(t, "10", v.Get("limit"))
}

func TestSettingGet(t *testing.T) {
	backend := &fakeBackend{answers: []string{`[{"key":"contact","value":{"email":"hi@academy.example"}}]`, `[]`}}
	repo := NewSettingRepository(backend)

	setting, err := repo.Get(context.Background(), "contact")
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"hi@academy.example"}`, string(setting.Value))

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
