package attendance

import "errors"

var (
	ErrWorkerRequired      = errors.New("worker id required")
	ErrWorkerNotFound      = errors.New("worker not found")
	ErrDuplicateCedula     = errors.New("a worker with this cedula already exists")
	ErrInvalidWorker       = errors.New("invalid worker")
	ErrRecordNotFound      = errors.New("attendance record not found")
	ErrPhotoRequired       = errors.New("evidence photo required")
	ErrPhotoUpload         = errors.New("evidence photo upload failed")
	ErrCaptureInProgress   = errors.New("a capture for this worker is already in progress")
	ErrNoPendingCapture    = errors.New("no capture in progress for this worker")
	ErrCaptureAbandoned    = errors.New("capture abandoned")
	ErrCaptureTimeout      = errors.New("capture timed out")
	ErrCaptureStoring      = errors.New("capture is already being stored")
	ErrRefreshTokenInvalid = errors.New("refresh token expired, revoked or unknown")
)
