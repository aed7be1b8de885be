package face

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/apperr"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
	"github.com/your-org/timeclock/internal/session"
)

var (
	ErrAlreadyRegistered = apperr.Conflict("face_already_registered", "a face is already registered for this user")
	ErrNoMatch           = apperr.NoMatch("no_match", "no registered face matches")
	ErrFaceNotRecognized = apperr.NoMatch("face_not_recognized", "face not recognized")
	ErrUnsupportedImage  = apperr.Validation("unsupported_snapshot", "snapshot must be a JPEG, PNG or WebP image")
	ErrSnapshotsDisabled = apperr.Validation("snapshot_storage_disabled", "snapshot storage is not configured")
)

type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetFaceDescriptor(ctx context.Context, id uuid.UUID, descriptor []float32, snapshotKey string) (bool, error)
}

// SnapshotStore keeps the optional enrollment image.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, userID uuid.UUID, data []byte, contentType string) (string, error)
	DeleteSnapshot(ctx context.Context, key string) error
}

// Sessions is the clock state machine face clock-in/out delegates to.
type Sessions interface {
	ClockIn(ctx context.Context, userID uuid.UUID, method models.Method) (*session.ClockResult, error)
	ClockOut(ctx context.Context, userID uuid.UUID, method models.Method) (*session.ClockResult, error)
}

type Snapshot struct {
	Data        []byte
	ContentType string
}

type Identity struct {
	UserID     uuid.UUID   `json:"user_id"`
	Name       string      `json:"name"`
	Role       models.Role `json:"role"`
	Distance   float64     `json:"distance"`
	Confidence float64     `json:"confidence"`
}

type Service struct {
	store            Store
	matcher          Matcher
	sessions         Sessions
	snapshots        SnapshotStore
	publisher        session.Publisher
	descriptorLength int
	// Now is overridable for tests.
	Now func() time.Time
}

type Options struct {
	DescriptorLength int
	// Snapshots and Publisher are optional.
	Snapshots SnapshotStore
	Publisher session.Publisher
}

func NewService(store Store, matcher Matcher, sessions Sessions, opts Options) *Service {
	if opts.DescriptorLength <= 0 {
		opts.DescriptorLength = 128
	}
	return &Service{
		store:            store,
		matcher:          matcher,
		sessions:         sessions,
		snapshots:        opts.Snapshots,
		publisher:        opts.Publisher,
		descriptorLength: opts.DescriptorLength,
		Now:              time.Now,
	}
}

// ValidateDescriptor checks the length and that every component is finite.
func (s *Service) ValidateDescriptor(d []float32) error {
	if len(d) != s.descriptorLength {
		return apperr.Invalid("descriptor must have %d values, got %d", s.descriptorLength, len(d))
	}
	for i, v := range d {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return apperr.Invalid("descriptor value %d is not a finite number", i)
		}
	}
	return nil
}

// Register stores the user's descriptor. A descriptor can be set once;
// later calls fail with ErrAlreadyRegistered and leave it unchanged.
func (s *Service) Register(ctx context.Context, userID uuid.UUID, descriptor []float32, snap *Snapshot) (*models.User, error) {
	if err := s.ValidateDescriptor(descriptor); err != nil {
		return nil, err
	}
	if snap != nil {
		if s.snapshots == nil {
			return nil, ErrSnapshotsDisabled
		}
		if !supportedImage(snap.ContentType) {
			return nil, ErrUnsupportedImage
		}
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("get user", err)
	}
	if u == nil {
		return nil, session.ErrUserNotFound
	}
	if u.FaceRegistered {
		return nil, ErrAlreadyRegistered
	}

	key := ""
	if snap != nil {
		key, err = s.snapshots.PutSnapshot(ctx, userID, snap.Data, snap.ContentType)
		if err != nil {
			return nil, apperr.Internal("store face snapshot", err)
		}
	}

	stored, err := s.store.SetFaceDescriptor(ctx, userID, descriptor, key)
	if err != nil || !stored {
		if key != "" {
			if derr := s.snapshots.DeleteSnapshot(ctx, key); derr != nil {
				slog.Warn("delete orphaned face snapshot", "key", key, "error", derr)
			}
		}
		if err != nil {
			return nil, apperr.Internal("set face descriptor", err)
		}
		return nil, ErrAlreadyRegistered
	}
	u.FaceRegistered = true
	u.FaceSnapshotKey = key

	slog.Info("face registered", "user_id", userID, "snapshot", key != "")
	if s.publisher != nil {
		ev := &models.AttendanceEvent{
			ID:        uuid.New(),
			UserID:    u.ID,
			UserName:  u.Name,
			Type:      models.EventFaceRegistered,
			Method:    models.MethodFace,
			Present:   u.Present(),
			Timestamp: s.Now().UTC(),
		}
		if err := s.publisher.PublishEvent(ctx, ev); err != nil {
			slog.Warn("publish attendance event", "type", ev.Type, "user_id", u.ID, "error", err)
		}
	}
	return u, nil
}

// Identify returns the registered identity nearest to probe.
func (s *Service) Identify(ctx context.Context, probe []float32) (*Identity, error) {
	if err := s.ValidateDescriptor(probe); err != nil {
		return nil, err
	}

	m, ok, err := s.matcher.Nearest(ctx, probe)
	if err != nil {
		observability.FaceIdentifications.WithLabelValues("error").Inc()
		return nil, apperr.Internal("match face", err)
	}
	if !ok {
		observability.FaceIdentifications.WithLabelValues("no_match").Inc()
		return nil, ErrNoMatch
	}
	observability.FaceIdentifications.WithLabelValues("match").Inc()
	observability.FaceMatchDistance.Observe(m.Distance)

	return &Identity{
		UserID:     m.UserID,
		Name:       m.Name,
		Role:       m.Role,
		Distance:   m.Distance,
		Confidence: Confidence(m.Distance),
	}, nil
}

type ClockResult struct {
	Identity *Identity            `json:"identity"`
	Clock    *session.ClockResult `json:"clock"`
}

// ClockIn identifies the face and clocks that user in.
func (s *Service) ClockIn(ctx context.Context, probe []float32) (*ClockResult, error) {
	id, err := s.recognize(ctx, probe)
	if err != nil {
		return nil, err
	}
	res, err := s.sessions.ClockIn(ctx, id.UserID, models.MethodFace)
	if err != nil {
		return nil, err
	}
	return &ClockResult{Identity: id, Clock: res}, nil
}

// ClockOut identifies the face and clocks that user out.
func (s *Service) ClockOut(ctx context.Context, probe []float32) (*ClockResult, error) {
	id, err := s.recognize(ctx, probe)
	if err != nil {
		return nil, err
	}
	res, err := s.sessions.ClockOut(ctx, id.UserID, models.MethodFace)
	if err != nil {
		return nil, err
	}
	return &ClockResult{Identity: id, Clock: res}, nil
}

func (s *Service) recognize(ctx context.Context, probe []float32) (*Identity, error) {
	id, err := s.Identify(ctx, probe)
	if errors.Is(err, ErrNoMatch) {
		return nil, ErrFaceNotRecognized
	}
	return id, err
}

func supportedImage(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}
