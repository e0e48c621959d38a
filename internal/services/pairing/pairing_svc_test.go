package pairing

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		rows     *sqlmock.Rows
		wantRoom string
		wantErr  error
	}{
		{
			name:     "requester resolves accepted pair",
			identity: "alice",
			rows: sqlmock.NewRows([]string{"requester_id", "recipient_id", "status"}).
				AddRow("alice", "bob", "ACCEPTED"),
			wantRoom: "pair:req-7",
		},
		{
			name:     "recipient resolves accepted pair",
			identity: "bob",
			rows: sqlmock.NewRows([]string{"requester_id", "recipient_id", "status"}).
				AddRow("alice", "bob", "ACCEPTED"),
			wantRoom: "pair:req-7",
		},
		{
			name:     "outsider denied",
			identity: "mallory",
			rows: sqlmock.NewRows([]string{"requester_id", "recipient_id", "status"}).
				AddRow("alice", "bob", "ACCEPTED"),
			wantErr: ErrNotAuthorized,
		},
		{
			name:     "pending request denied",
			identity: "alice",
			rows: sqlmock.NewRows([]string{"requester_id", "recipient_id", "status"}).
				AddRow("alice", "bob", "PENDING"),
			wantErr: ErrPairNotActive,
		},
		{
			name:     "unknown ref",
			identity: "alice",
			rows:     sqlmock.NewRows([]string{"requester_id", "recipient_id", "status"}),
			wantErr:  ErrPairNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery("SELECT requester_id, recipient_id, status").
				WithArgs("req-7").
				WillReturnRows(tt.rows)

			svc := NewPairingService(db)
			room, err := svc.Resolve(context.Background(), tt.identity, "req-7")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsDenial(err))
				assert.Empty(t, room)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRoom, room)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewPairingService(db)

	mock.ExpectQuery("SELECT coalesce").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"last_conn_addr"}).AddRow("10.0.0.3:8086"))
	addr, err := svc.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3:8086", addr)

	// Unknown identity: none recorded, not an error.
	mock.ExpectQuery("SELECT coalesce").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"last_conn_addr"}))
	addr, err = svc.Lookup(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, addr)

	assert.NoError(t, mock.ExpectationsWereMet())
}
