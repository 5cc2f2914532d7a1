package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    string
		wantDue string
		wantErr bool
	}{
		{
			name: "minimal",
			line: `{"title":"write report","finished":false,"priority":0,"created_at":"2026-01-01T00:00:00Z"}`,
			want: "write report",
		},
		{
			name:    "with due date",
			line:    `{"title":"pay rent","finished":false,"priority":3,"created_at":"2026-01-01T00:00:00Z","due_date":"2026-02-01"}`,
			want:    "pay rent",
			wantDue: "2026-02-01",
		},
		{
			name: "legacy id key ignored",
			line: `{"id":42,"title":"old","finished":true,"priority":0,"created_at":"2026-01-01T00:00:00Z","due_date":null}`,
			want: "old",
		},
		{
			name:    "invalid json",
			line:    `{"title":`,
			wantErr: true,
		},
		{
			name:    "null",
			line:    `null`,
			wantErr: true,
		},
		{
			name:    "array",
			line:    `[1,2]`,
			wantErr: true,
		},
		{
			name:    "bad due date",
			line:    `{"title":"x","created_at":"2026-01-01T00:00:00Z","due_date":"tomorrow"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeLine(tt.line, 7)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 7, r.ID)
			assert.Equal(t, tt.want, r.Title)
			if tt.wantDue != "" {
				require.NotNil(t, r.DueDate)
				assert.Equal(t, tt.wantDue, r.DueDate.String())
			}
		})
	}
}

func TestEncodeLineOmitsID(t *testing.T) {
	r := Record{ID: 5, Title: "x", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	line, err := EncodeLine(r)
	require.NoError(t, err)
	assert.NotContains(t, line, `"id"`)
	assert.NotContains(t, line, "\n")
	assert.Equal(t, `{"title":"x","description":null,"finished":false,"priority":0,"created_at":"2026-01-01T00:00:00Z","due_date":null}`, line)
}

func TestDecodeLenient(t *testing.T) {
	lines := []string{
		`{"title":"a","created_at":"2026-01-01T00:00:00Z"}`,
		"",
		"not a record",
		`{"title":"b","created_at":"2026-01-01T00:00:00Z"}`,
	}

	records := DecodeLenient(lines)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Title)
	assert.Equal(t, "b", records[1].Title)
	for _, r := range records {
		assert.Zero(t, r.ID)
	}
}

func TestFingerprint(t *testing.T) {
	base := Record{Title: "same", Priority: 1, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	t.Run("ignores id", func(t *testing.T) {
		a, b := base, base
		a.ID, b.ID = 1, 9
		assert.Equal(t, Fingerprint(a), Fingerprint(b))
	})

	t.Run("independent of key order on disk", func(t *testing.T) {
		a, err := DecodeLine(`{"title":"same","priority":1,"created_at":"2026-01-01T00:00:00Z"}`, 1)
		require.NoError(t, err)
		b, err := DecodeLine(`{"created_at":"2026-01-01T00:00:00Z","priority":1,"title":"same"}`, 2)
		require.NoError(t, err)
		assert.Equal(t, Fingerprint(a), Fingerprint(b))
	})

	t.Run("sensitive to content", func(t *testing.T) {
		changed := base
		changed.Finished = true
		assert.NotEqual(t, Fingerprint(base), Fingerprint(changed))
	})
}

func TestRenumber(t *testing.T) {
	records := []Record{{ID: 4}, {ID: 0}, {ID: 4}}
	Renumber(records)
	assert.Equal(t, 1, records[0].ID)
	assert.Equal(t, 2, records[1].ID)
	assert.Equal(t, 3, records[2].ID)
}
