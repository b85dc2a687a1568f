package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/DoyleJ11/mafia-backend/internal/engine"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GameRecord is one finished game.
type GameRecord struct {
	ID      uint           `json:"id" gorm:"primaryKey"`
	GameID  string         `json:"gameId" gorm:"type:varchar(64);uniqueIndex;not null"`
	RoomID  string         `json:"roomId" gorm:"type:varchar(64);index;not null"`
	Winner  string         `json:"winner" gorm:"type:varchar(16);not null"`
	Days    int            `json:"days" gorm:"not null"`
	EndedAt time.Time      `json:"endedAt" gorm:"not null"`
	Players []PlayerRecord `json:"players" gorm:"foreignKey:GameRecordID"`
}

func (GameRecord) TableName() string {
	return "finished_games"
}

type PlayerRecord struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	GameRecordID uint   `json:"-" gorm:"index;not null"`
	PlayerID     string `json:"playerId" gorm:"type:varchar(64);not null"`
	Role         string `json:"role" gorm:"type:varchar(16);not null"`
	Alive        bool   `json:"alive"`
}

func (PlayerRecord) TableName() string {
	return "finished_game_players"
}

type Writer interface {
	SaveGame(ctx context.Context, rec *GameRecord) error
}

type gormWriter struct {
	db *gorm.DB
}

// SaveGame inserts the game and its players. Create runs inside gorm's
// default transaction, so a failed insert stores neither.
func (w gormWriter) SaveGame(ctx context.Context, rec *GameRecord) error {
	return w.db.WithContext(ctx).Create(rec).Error
}

// Recorder stores every GameEnded event. Its Handle method is an event bus
// handler.
type Recorder struct {
	w      Writer
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(w Writer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{w: w, logger: logger.Named("archive"), now: time.Now}
}

// Open connects to Postgres and migrates the archive tables.
func Open(dsn string, logger *zap.Logger) (*Recorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := db.AutoMigrate(&GameRecord{}, &PlayerRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	r := NewRecorder(gormWriter{db: db}, logger)
	r.db = db
	return r, nil
}

func (r *Recorder) Handle(ctx context.Context, e engine.Event) {
	if e.Type != engine.EvtGameEnded || e.Final == nil {
		return
	}
	rec := Record(*e.Final, r.now())
	if err := r.w.SaveGame(ctx, rec); err != nil {
		r.logger.Error("archive game",
			zap.String("room_id", rec.RoomID),
			zap.String("game_id", rec.GameID),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("game archived", zap.String("game_id", rec.GameID), zap.String("winner", rec.Winner))
}

func Record(final engine.FinalSnapshot, endedAt time.Time) *GameRecord {
	rec := &GameRecord{
		GameID:  final.GameID,
		RoomID:  final.RoomID,
		Winner:  string(final.Winner),
		Days:    final.Days,
		EndedAt: endedAt.UTC(),
		Players: make([]PlayerRecord, 0, len(final.Players)),
	}
	for _, p := range final.Players {
		rec.Players = append(rec.Players, PlayerRecord{
			PlayerID: p.ID,
			Role:     string(p.Role),
			Alive:    p.Alive,
		})
	}
	return rec
}

func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
