package producer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/streamlinepay/platform/libs/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID   string
	Name string
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, a account) (account, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(account), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic, key, eventType string, value []byte) error {
	args := m.Called(ctx, topic, key, eventType, value)
	return args.Error(0)
}

func newAdapter(store Store[account], pub MessagePublisher) *Adapter[account] {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New[account](store, pub, logger, Config[account]{
		Topic: events.TopicUsers,
		KeyOf: func(a account) string { return a.ID },
		EventOf: func(a account) any {
			return events.UserEvent{ID: a.ID, Username: a.Name, Email: a.Name + "@x.com"}
		},
	})
}

func TestPublishEntityCreated(t *testing.T) {
	ctx := context.Background()
	persisted := account{ID: "u-1", Name: "amr"}

	testCases := []struct {
		name       string
		saveErr    error
		publishErr error
		wantErr    bool
		wantPub    bool
	}{
		{name: "persist and publish", wantPub: true},
		{name: "publish failure is not returned", publishErr: errors.New("broker down"), wantPub: true},
		{name: "persist failure aborts", saveErr: errors.New("db down"), wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			store := new(mockStore)
			pub := new(mockPublisher)
			if tc.saveErr != nil {
				store.On("Save", ctx, account{Name: "amr"}).Return(account{}, tc.saveErr).Once()
			} else {
				store.On("Save", ctx, account{Name: "amr"}).Return(persisted, nil).Once()
			}
			if tc.wantPub {
				pub.On("Publish", ctx, events.TopicUsers, "u-1", "user.created",
					[]byte(`{"id":"u-1","username":"amr","email":"amr@x.com"}`)).
					Return(tc.publishErr).Once()
			}

			// when
			got, err := newAdapter(store, pub).PublishEntityCreated(ctx, account{Name: "amr"})

			// then
			if tc.wantErr {
				require.ErrorIs(t, err, tc.saveErr)
				assert.Equal(t, account{}, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, persisted, got)
			}
			store.AssertExpectations(t)
			pub.AssertExpectations(t)
			if !tc.wantPub {
				pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}
