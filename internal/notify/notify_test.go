package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"grievance/backend/internal/localization"
	"grievance/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWhatsApp struct{ mock.Mock }

func (m *MockWhatsApp) SendWhatsApp(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

type MockTelegram struct{ mock.Mock }

func (m *MockTelegram) SendTelegram(ctx context.Context, chatID int64, body string) error {
	return m.Called(ctx, chatID, body).Error(0)
}

type MockPhones struct{ mock.Mock }

func (m *MockPhones) ContactPhone(ctx context.Context, grievanceID string) (string, error) {
	args := m.Called(ctx, grievanceID)
	return args.String(0), args.Error(1)
}

func newLocalizer(t *testing.T) *localization.Localizer {
	t.Helper()
	l, err := localization.NewLocalizer()
	require.NoError(t, err)
	return l
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"9876543210", "+919876543210", false},
		{"09876543210", "+919876543210", false},
		{"+1 (415) 523-8886", "+14155238886", false},
		{"whatsapp:+919876543210", "+919876543210", false},
		{"0044 20 7946 0958", "+442079460958", false},
		{"919876543210", "+919876543210", false},
		{"12345", "", true},
		{"98765abc10", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in, "+91")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	addr, err := WhatsAppAddress("9876543210", "+91")
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:+919876543210", addr)
}

func TestDispatcher_WhatsApp(t *testing.T) {
	wa := new(MockWhatsApp)
	wa.On("SendWhatsApp", mock.Anything, "9876543210", mock.MatchedBy(func(body string) bool {
		return body == "Update on grievance GRV-1: status changed from Pending to Resolved."
	})).Return("SM1", nil)

	d := NewDispatcher(Options{WhatsApp: wa, Localize: newLocalizer(t)})
	res := d.NotifyStatusChange(context.Background(), &models.Grievance{GrievanceID: "GRV-1", Phone: "9876543210"}, "Pending", "Resolved", "")

	assert.Equal(t, Result{Sent: true, Channel: ChannelWhatsApp}, res)
	wa.AssertExpectations(t)
}

func TestDispatcher_PhoneLookupFallback(t *testing.T) {
	wa := new(MockWhatsApp)
	wa.On("SendWhatsApp", mock.Anything, "9111111111", mock.Anything).Return("SM2", nil)
	phones := new(MockPhones)
	phones.On("ContactPhone", mock.Anything, "GRV-2").Return("9111111111", nil)

	d := NewDispatcher(Options{WhatsApp: wa, Phones: phones, Localize: newLocalizer(t)})
	res := d.NotifySubmitted(context.Background(), &models.Grievance{GrievanceID: "GRV-2", Department: models.DeptRoads, Priority: "high", Status: "Pending"})

	assert.True(t, res.Sent)
	phones.AssertExpectations(t)
	wa.AssertExpectations(t)
}

func TestDispatcher_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("no phone", func(t *testing.T) {
		phones := new(MockPhones)
		phones.On("ContactPhone", mock.Anything, "GRV-3").Return("", nil)
		d := NewDispatcher(Options{WhatsApp: new(MockWhatsApp), Phones: phones})
		res := d.NotifySubmitted(ctx, &models.Grievance{GrievanceID: "GRV-3"})
		assert.False(t, res.Sent)
		assert.Equal(t, "no phone number on record", res.Error)
	})

	t.Run("not configured", func(t *testing.T) {
		d := NewDispatcher(Options{})
		res := d.NotifySubmitted(ctx, &models.Grievance{GrievanceID: "GRV-4", Phone: "9876543210"})
		assert.False(t, res.Sent)
		assert.Contains(t, res.Error, "not configured")
		assert.False(t, d.WhatsAppEnabled())
	})

	t.Run("provider error", func(t *testing.T) {
		wa := new(MockWhatsApp)
		wa.On("SendWhatsApp", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("21211 invalid To number"))
		d := NewDispatcher(Options{WhatsApp: wa})
		res := d.NotifySubmitted(ctx, &models.Grievance{GrievanceID: "GRV-5", Phone: "9876543210"})
		assert.False(t, res.Sent)
		assert.Equal(t, "21211 invalid To number", res.Error)
	})

	t.Run("bounded by timeout", func(t *testing.T) {
		wa := new(MockWhatsApp)
		wa.On("SendWhatsApp", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return("", context.DeadlineExceeded)
		d := NewDispatcher(Options{WhatsApp: wa, Timeout: 20 * time.Millisecond})

		start := time.Now()
		res := d.NotifySubmitted(ctx, &models.Grievance{GrievanceID: "GRV-6", Phone: "9876543210"})
		assert.False(t, res.Sent)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestDispatcher_TelegramPreferred(t *testing.T) {
	chatID := int64(4242)
	tg := new(MockTelegram)
	tg.On("SendTelegram", mock.Anything, chatID, "Your grievance GRV-7 has been closed. Resolution: Pipe replaced on 3 May").Return(nil)
	wa := new(MockWhatsApp)

	d := NewDispatcher(Options{WhatsApp: wa, Telegram: tg, Localize: newLocalizer(t)})
	res := d.NotifyStatusChange(context.Background(),
		&models.Grievance{GrievanceID: "GRV-7", Phone: "9876543210", TelegramChatID: &chatID},
		models.StatusResolved, models.StatusClosed, "Pipe replaced on 3 May")

	assert.Equal(t, Result{Sent: true, Channel: ChannelTelegram}, res)
	tg.AssertExpectations(t)
	wa.AssertNotCalled(t, "SendWhatsApp", mock.Anything, mock.Anything, mock.Anything)
}
