package pg

import (
	"context"
	"errors"
	"fmt"

	"drunc.client/internal/core/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sessionRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	RTEScript string
}

func (sessionRow) TableName() string { return "sessions" }

type segmentRow struct {
	ID        uint  `gorm:"primaryKey"`
	SessionID uint  `gorm:"index;not null"`
	ParentID  *uint `gorm:"index"`
	Position  int
	Name      string
}

func (segmentRow) TableName() string { return "segments" }

type applicationRow struct {
	ID        uint `gorm:"primaryKey"`
	SegmentID uint `gorm:"index;not null"`
	Position  int
	Name      string
	Type      string
	Args      string
	Host      string
	Env       map[string]string `gorm:"type:jsonb;serializer:json"`
}

func (applicationRow) TableName() string { return "applications" }

// Repository resolves segment databases stored in PostgreSQL.
type Repository struct {
	db *gorm.DB
}

// NewRepository connects to dsn. The segment database is read only: the
// tables must already exist.
func NewRepository(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := checkSchema(db.Migrator()); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, err
	}

	return &Repository{db: db}, nil
}

// tableChecker is the part of gorm.Migrator used to validate the schema.
type tableChecker interface {
	HasTable(dst interface{}) bool
}

func checkSchema(m tableChecker) error {
	for _, model := range []schemaModel{&sessionRow{}, &segmentRow{}, &applicationRow{}} {
		if !m.HasTable(model) {
			return fmt.Errorf("segment database has no %s table", model.TableName())
		}
	}
	return nil
}

type schemaModel interface {
	TableName() string
}

// Resolve loads the tree of session. The reference already chose this
// database, so it is not consulted again.
func (r *Repository) Resolve(ctx context.Context, _ string, session string) (*domain.SessionTree, error) {
	db := r.db.WithContext(ctx)

	var sess sessionRow
	if err := db.First(&sess, "name = ?", session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s not found in segment database", session)
		}
		return nil, err
	}

	var segments []segmentRow
	if err := db.Where("session_id = ?", sess.ID).Order("position asc").Find(&segments).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(segments))
	for _, s := range segments {
		ids = append(ids, s.ID)
	}
	var apps []applicationRow
	if len(ids) > 0 {
		if err := db.Where("segment_id IN ?", ids).Order("position asc").Find(&apps).Error; err != nil {
			return nil, err
		}
	}

	return buildTree(sess, segments, apps)
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// buildTree assembles rows into a session tree. segments and apps must be
// sorted by position; the single segment without a parent is the root.
func buildTree(sess sessionRow, segments []segmentRow, apps []applicationRow) (*domain.SessionTree, error) {
	nodes := make(map[uint]*domain.Segment, len(segments))
	for _, s := range segments {
		nodes[s.ID] = &domain.Segment{Name: s.Name}
	}

	var root *domain.Segment
	for _, s := range segments {
		node := nodes[s.ID]
		if s.ParentID == nil {
			if root != nil {
				return nil, fmt.Errorf("session %s has more than one root segment", sess.Name)
			}
			root = node
			continue
		}
		parent, ok := nodes[*s.ParentID]
		if !ok {
			return nil, fmt.Errorf("segment %s references unknown parent %d", s.Name, *s.ParentID)
		}
		parent.Segments = append(parent.Segments, node)
	}
	if root == nil {
		return nil, fmt.Errorf("session %s has no segment", sess.Name)
	}

	for _, a := range apps {
		node, ok := nodes[a.SegmentID]
		if !ok {
			return nil, fmt.Errorf("application %s references unknown segment %d", a.Name, a.SegmentID)
		}
		node.Applications = append(node.Applications, &domain.Application{
			Name: a.Name,
			Type: a.Type,
			Args: a.Args,
			Env:  a.Env,
			Host: a.Host,
		})
	}

	return &domain.SessionTree{
		Name:      sess.Name,
		RTEScript: sess.RTEScript,
		Segment:   root,
	}, nil
}
