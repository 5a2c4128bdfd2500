package calls

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/cache"
)

// Directory resolves identifiers into what the UI shows. Lookups never fail:
// unknown identities fall back to the raw id and unknown meetings to "".
type Directory interface {
	Profile(ctx context.Context, id uuid.UUID) entities.DisplayInfo
	MeetingTitle(ctx context.Context, reunionID uuid.UUID) string
}

// CachedDirectory reads profiles and meetings through a TTL cache
type CachedDirectory struct {
	profiles repositories.ProfileRepository
	reunions repositories.ReunionRepository
	infos    *cache.MemoryStore[entities.DisplayInfo]
	titles   *cache.MemoryStore[string]
	ttl      time.Duration
	logger   *zap.Logger
}

var _ Directory = (*CachedDirectory)(nil)

// NewCachedDirectory creates a directory whose entries live for ttl
func NewCachedDirectory(
	profiles repositories.ProfileRepository,
	reunions repositories.ReunionRepository,
	infos *cache.MemoryStore[entities.DisplayInfo],
	titles *cache.MemoryStore[string],
	ttl time.Duration,
	logger *zap.Logger,
) *CachedDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDirectory{
		profiles: profiles,
		reunions: reunions,
		infos:    infos,
		titles:   titles,
		ttl:      ttl,
		logger:   logger.Named("directory"),
	}
}

// Profile returns the display info of id
func (d *CachedDirectory) Profile(ctx context.Context, id uuid.UUID) entities.DisplayInfo {
	key := id.String()
	if info, ok := d.infos.Get(key); ok {
		return info
	}

	profile, err := d.profiles.FindByID(ctx, id)
	if err != nil {
		d.logger.Debug("profile lookup failed, using raw id",
			zap.String("profile_id", key),
			zap.Error(err),
		)
		return entities.FallbackDisplayInfo(id)
	}

	info := profile.DisplayInfo()
	d.infos.Set(key, info, d.ttl)
	return info
}

// MeetingTitle returns the title of a meeting
func (d *CachedDirectory) MeetingTitle(ctx context.Context, reunionID uuid.UUID) string {
	key := reunionID.String()
	if title, ok := d.titles.Get(key); ok {
		return title
	}

	reunion, err := d.reunions.FindByID(ctx, reunionID)
	if err != nil {
		d.logger.Debug("meeting lookup failed",
			zap.String("reunion_id", key),
			zap.Error(err),
		)
		return ""
	}

	d.titles.Set(key, reunion.Title, d.ttl)
	return reunion.Title
}
