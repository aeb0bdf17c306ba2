package grievance

import (
	"context"

	"grievance/backend/internal/models"
	"grievance/backend/internal/notify"
	"grievance/backend/internal/triage"

	"github.com/stretchr/testify/mock"
)

// MockTriage is a mock implementation of Triage
type MockTriage struct {
	mock.Mock
}

func (m *MockTriage) Structure(ctx context.Context, text string, loc models.Location) (string, error) {
	args := m.Called(ctx, text, loc)
	return args.String(0), args.Error(1)
}

func (m *MockTriage) ClassifyDepartment(ctx context.Context, text string) string {
	return m.Called(ctx, text).String(0)
}

func (m *MockTriage) AssignPriority(ctx context.Context, text string, loc models.Location) string {
	return m.Called(ctx, text, loc).String(0)
}

func (m *MockTriage) VerifyClosure(ctx context.Context, grievance, resolution string, loc models.Location) triage.Verdict {
	return m.Called(ctx, grievance, resolution, loc).Get(0).(triage.Verdict)
}

func (m *MockTriage) AnalyzeImage(ctx context.Context, data []byte, mimeType, structured string) triage.ImageAnalysis {
	return m.Called(ctx, data, mimeType, structured).Get(0).(triage.ImageAnalysis)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifySubmitted(ctx context.Context, g *models.Grievance) notify.Result {
	return m.Called(ctx, g).Get(0).(notify.Result)
}

func (m *MockNotifier) NotifyStatusChange(ctx context.Context, g *models.Grievance, oldStatus, newStatus, note string) notify.Result {
	return m.Called(ctx, g, oldStatus, newStatus, note).Get(0).(notify.Result)
}

// MockPublisher is a mock implementation of livefeed.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev models.FeedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

// MockImageStore is a mock implementation of ImageStore
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Save(originalName string, data []byte) (string, error) {
	args := m.Called(originalName, data)
	return args.String(0), args.Error(1)
}

// memoryDeduper keeps claimed message ids in a map.
type memoryDeduper struct {
	replies map[string]string
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{replies: make(map[string]string)}
}

func (d *memoryDeduper) Claim(_ context.Context, id string) (bool, string, error) {
	if reply, ok := d.replies[id]; ok {
		return false, reply, nil
	}
	d.replies[id] = ""
	return true, "", nil
}

func (d *memoryDeduper) Complete(_ context.Context, id, reply string) error {
	d.replies[id] = reply
	return nil
}

func (d *memoryDeduper) Release(_ context.Context, id string) error {
	delete(d.replies, id)
	return nil
}
