package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"labelflow/features/job"
	"labelflow/features/task"
	"labelflow/features/workforce"
	"labelflow/internal/fanout"
	"labelflow/internal/middleware"
	"labelflow/internal/worker"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) InsertAssignments(ctx context.Context, msg task.AssignmentMessage) (int, error) {
	args := m.Called(ctx, msg)
	return args.Int(0), args.Error(1)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func assignment(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(task.AssignmentMessage{
		BatchID:       "batch-1",
		Seq:           2,
		Template:      fanout.Record{Name: "Survey 3"},
		Workers:       []workforce.Worker{{ID: "w1"}, {ID: "w2"}},
		CorrelationID: "corr-1",
	})
	assert.NoError(t, err)
	return body
}

func TestAssignmentConsumer_HandleMessage(t *testing.T) {
	store := new(MockStore)
	jobs := new(MockJobRepo)
	consumer := worker.NewAssignmentConsumer(store, jobs, 3)

	store.On("InsertAssignments", mock.MatchedBy(func(ctx context.Context) bool {
		return middleware.GetCorrelationID(ctx) == "corr-1"
	}), mock.MatchedBy(func(msg task.AssignmentMessage) bool {
		return msg.BatchID == "batch-1" && msg.Seq == 2 && len(msg.Workers) == 2
	})).Return(2, nil)

	err := consumer.HandleMessage(&nsq.Message{Body: assignment(t), Attempts: 1})
	assert.NoError(t, err)
	store.AssertExpectations(t)
	jobs.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAssignmentConsumer_PoisonPill(t *testing.T) {
	store := new(MockStore)
	consumer := worker.NewAssignmentConsumer(store, new(MockJobRepo), 3)

	assert.NoError(t, consumer.HandleMessage(&nsq.Message{Body: []byte("invalid json")}))
	assert.NoError(t, consumer.HandleMessage(&nsq.Message{Body: []byte(`{"batch_id":"b"}`)}))
	assert.NoError(t, consumer.HandleMessage(&nsq.Message{}))
	store.AssertNotCalled(t, "InsertAssignments", mock.Anything, mock.Anything)
}

func TestAssignmentConsumer_RequeueThenPark(t *testing.T) {
	store := new(MockStore)
	jobs := new(MockJobRepo)
	consumer := worker.NewAssignmentConsumer(store, jobs, 3)
	store.On("InsertAssignments", mock.Anything, mock.Anything).Return(0, errors.New("connection refused"))

	err := consumer.HandleMessage(&nsq.Message{Body: assignment(t), Attempts: 1})
	assert.Error(t, err, "store failures are requeued")

	jobs.On("Save", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
		return j.BatchID == "batch-1" && j.Handler == "assignment-worker" && j.Topic == "task.assign" && j.Retries == 3
	})).Return(nil)

	err = consumer.HandleMessage(&nsq.Message{Body: assignment(t), Attempts: 3})
	assert.NoError(t, err, "exhausted messages are acked")
	jobs.AssertExpectations(t)
}
