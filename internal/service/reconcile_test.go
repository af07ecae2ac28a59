package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/arturkryukov/clientportal/internal/domain/model"
	"github.com/arturkryukov/clientportal/internal/repository"
)

// TestReconcileService_RunOnce проверяет один проход уборки:
// застрявшие резервации удаляются вместе с blob'ами.
func TestReconcileService_RunOnce(t *testing.T) {
	stale := []*model.FileRecord{
		{FileHash: "hash-1", UserID: "u1", UploadState: model.UploadStateReserved},
		{FileHash: "hash-2", UserID: "u2", UploadState: model.UploadStateReserved},
	}

	var deletedRows, deletedBlobs []string
	fileRepo := &mockFileRepo{
		listStaleReservationsFn: func(_ context.Context, cutoff time.Time, limit int) ([]*model.FileRecord, error) {
			if !cutoff.Before(time.Now()) {
				t.Error("cutoff должен быть в прошлом")
			}
			return stale, nil
		},
		deleteReservedFn: func(_ context.Context, fileHash string) error {
			deletedRows = append(deletedRows, fileHash)
			return nil
		},
	}
	blobs := &mockBlobStore{
		deleteFn: func(_ context.Context, _, fileHash string) error {
			deletedBlobs = append(deletedBlobs, fileHash)
			return nil
		},
	}

	svc := NewReconcileService(fileRepo, blobs, time.Minute, time.Hour, slog.Default())

	reaped, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce ошибка: %v", err)
	}
	if reaped != 2 {
		t.Errorf("reaped = %d, ожидалось 2", reaped)
	}
	if len(deletedRows) != 2 || len(deletedBlobs) != 2 {
		t.Errorf("удалено записей=%d, blob'ов=%d; ожидалось по 2", len(deletedRows), len(deletedBlobs))
	}
}

// TestReconcileService_RunOnce_SkipsEscapedReservation проверяет, что
// резервация, успевшая уйти из reserved, пропускается без ошибки.
func TestReconcileService_RunOnce_SkipsEscapedReservation(t *testing.T) {
	fileRepo := &mockFileRepo{
		listStaleReservationsFn: func(_ context.Context, _ time.Time, _ int) ([]*model.FileRecord, error) {
			return []*model.FileRecord{
				{FileHash: "hash-escaped", UserID: "u1", UploadState: model.UploadStateReserved},
			}, nil
		},
		deleteReservedFn: func(_ context.Context, _ string) error {
			return repository.ErrNotFound
		},
	}
	blobDeleted := false
	blobs := &mockBlobStore{
		deleteFn: func(_ context.Context, _, _ string) error {
			blobDeleted = true
			return nil
		},
	}

	svc := NewReconcileService(fileRepo, blobs, time.Minute, time.Hour, slog.Default())

	reaped, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce ошибка: %v", err)
	}
	if reaped != 0 {
		t.Errorf("reaped = %d, ожидалось 0", reaped)
	}
	if blobDeleted {
		t.Error("blob удалён для резервации, ушедшей из reserved")
	}
}

// TestReconcileService_RunOnce_BlobFailureNotFatal проверяет, что сбой
// удаления blob не прерывает проход.
func TestReconcileService_RunOnce_BlobFailureNotFatal(t *testing.T) {
	fileRepo := &mockFileRepo{
		listStaleReservationsFn: func(_ context.Context, _ time.Time, _ int) ([]*model.FileRecord, error) {
			return []*model.FileRecord{
				{FileHash: "hash-1", UserID: "u1", UploadState: model.UploadStateReserved},
				{FileHash: "hash-2", UserID: "u1", UploadState: model.UploadStateReserved},
			}, nil
		},
	}
	blobs := &mockBlobStore{
		deleteFn: func(_ context.Context, _, _ string) error {
			return errors.New("connection refused")
		},
	}

	svc := NewReconcileService(fileRepo, blobs, time.Minute, time.Hour, slog.Default())

	reaped, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce ошибка: %v", err)
	}
	if reaped != 2 {
		t.Errorf("reaped = %d, ожидалось 2", reaped)
	}
}

// TestReconcileService_StartStop проверяет запуск и корректную остановку
// фоновой горутины.
func TestReconcileService_StartStop(t *testing.T) {
	fileRepo := &mockFileRepo{}
	svc := NewReconcileService(fileRepo, &mockBlobStore{}, 10*time.Millisecond, time.Hour, slog.Default())

	svc.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() не завершился за секунду")
	}
}
