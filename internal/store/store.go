// Package store persists finished-match summaries. The game core only
// ever hands a summary across this boundary; querying and indexing
// live elsewhere.
package store

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tarabish/tarneeb-server/internal/engine"
)

type Match struct {
	ID         uint   `gorm:"primaryKey"`
	RoomID     string `gorm:"index"`
	WinnerTeam int
	Team1Score int
	Team2Score int
	Player1    string
	Player2    string
	Player3    string
	Player4    string
	CreatedAt  time.Time

	Rounds []MatchRound `gorm:"foreignKey:MatchID"`
}

type MatchRound struct {
	ID          uint `gorm:"primaryKey"`
	MatchID     uint `gorm:"index"`
	Number      int
	Bid         int
	BidderID    string
	BidderTeam  int
	Trump       string
	Team1Tricks int
	Team2Tricks int
	Team1Delta  int
	Team2Delta  int
}

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects and migrates. An empty dsn yields a nil *Store, which
// is a valid no-op writer, so a database is optional in development.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Match{}, &MatchRound{}); err != nil {
		return nil, err
	}
	return &Store{db: db, log: log.Named("store")}, nil
}

func (s *Store) SaveMatch(ctx context.Context, roomID string, sum engine.Summary) error {
	if s == nil {
		return nil
	}
	m := Match{
		RoomID:     roomID,
		WinnerTeam: sum.WinnerTeam,
		Team1Score: sum.FinalScores[0],
		Team2Score: sum.FinalScores[1],
		Player1:    sum.PlayerIDs[0],
		Player2:    sum.PlayerIDs[1],
		Player3:    sum.PlayerIDs[2],
		Player4:    sum.PlayerIDs[3],
	}
	for i, r := range sum.Rounds {
		m.Rounds = append(m.Rounds, MatchRound{
			Number:      i + 1,
			Bid:         r.Bid,
			BidderID:    r.BidderID,
			BidderTeam:  r.BidderTeam + 1,
			Trump:       r.Trump.String(),
			Team1Tricks: r.TricksWon[0],
			Team2Tricks: r.TricksWon[1],
			Team1Delta:  r.ScoreDelta[0],
			Team2Delta:  r.ScoreDelta[1],
		})
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	s.log.Info("match saved",
		zap.String("room", roomID),
		zap.Int("winnerTeam", sum.WinnerTeam),
		zap.Int("rounds", len(sum.Rounds)))
	return nil
}
