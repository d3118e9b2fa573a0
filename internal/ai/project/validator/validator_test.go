package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/Jamolkhon5/nexter/internal/models"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, ok := ParseDate(s)
	require.True(t, ok, s)
	return &d
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "2024-03-05", want: "2024-03-05", ok: true},
		{in: "2024-03-05T10:00:00Z", want: "2024-03-05", ok: true},
		{in: "2024-03-05T10:00:00", want: "2024-03-05", ok: true},
		{in: "2024-03", want: "2024-03-01", ok: true},
		{in: "2024.03.05", want: "2024-03-05", ok: true},
		{in: " 2024-03-05 ", want: "2024-03-05", ok: true},
		{in: "last spring"},
		{in: ""},
		{in: "2024-13-01"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format("2006-01-02"))
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestValidateProject(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		state := ValidateProject(core.Project{
			Title:     "Campaign X",
			StartDate: date(t, "2024-01-01"),
			EndDate:   date(t, "2024-06-01"),
		})
		assert.True(t, state.IsValid)
		assert.Empty(t, state.Errors)
	})

	t.Run("end before start", func(t *testing.T) {
		state := ValidateProject(core.Project{
			StartDate: date(t, "2024-06-01"),
			EndDate:   date(t, "2024-01-01"),
		})
		assert.False(t, state.IsValid)
		assert.Contains(t, state.Errors, FieldEndDate)
	})

	t.Run("open period", func(t *testing.T) {
		state := ValidateProject(core.Project{StartDate: date(t, "2024-06-01")})
		assert.True(t, state.IsValid)
	})

	t.Run("long title", func(t *testing.T) {
		state := ValidateProject(core.Project{Title: strings.Repeat("가", MaxTitleLength+1)})
		assert.False(t, state.IsValid)
		assert.Contains(t, state.Errors, FieldTitle)
	})

	t.Run("warnings do not invalidate", func(t *testing.T) {
		tags := make([]string, MaxTags+1)
		state := ValidateProject(core.Project{
			Description: strings.Repeat("x", MaxDescriptionLength+1),
			Tags:        tags,
		})
		assert.True(t, state.IsValid)
		assert.Contains(t, state.Warnings, FieldDescription)
		assert.Contains(t, state.Warnings, FieldTags)
	})
}
