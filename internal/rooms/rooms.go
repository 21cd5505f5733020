// Package rooms persists collaborative design documents and enforces
// owner/collaborator access. The live relay never touches this store;
// clients save through it after applying relayed mutations locally.
package rooms

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/uidraft/backend/internal/models"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrAlreadyCollaborator = errors.New("user is already a collaborator")
)

const accessCodeLength = 6

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a room with a fresh access code and a single default view.
func (s *Store) Create(ctx context.Context, ownerID uuid.UUID, name string) (*models.Room, error) {
	code, err := generateAccessCode(accessCodeLength)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &models.Room{
		ID:            uuid.New(),
		Name:          name,
		OwnerID:       ownerID,
		Collaborators: []uuid.UUID{},
		AccessCode:    code,
		Views: []models.View{{
			ID:         fmt.Sprintf("%d", now.UnixMilli()),
			Name:       "main",
			Components: []models.Component{},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	views, err := room.ViewsJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize views: %w", err)
	}

	query := `
		INSERT INTO rooms (id, name, owner_id, collaborators, access_code, views, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.ExecContext(ctx, query,
		room.ID, room.Name, room.OwnerID, collaboratorArray(room.Collaborators),
		room.AccessCode, views, room.CreatedAt, room.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

// ListForUser returns the rooms the user owns or collaborates on, most
// recently updated first.
func (s *Store) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Room, error) {
	query := `
		SELECT id, name, owner_id, collaborators, access_code, views, created_at, updated_at
		FROM rooms
		WHERE owner_id = $1 OR $1 = ANY(collaborators)
		ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var result []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, room)
	}
	return result, rows.Err()
}

// Get loads a room the user has access to.
func (s *Store) Get(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	room, err := s.getByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasAccess(userID) {
		return nil, ErrAccessDenied
	}
	return room, nil
}

// Update replaces the room name and/or view tree. The document is
// last-write-wins: whatever a client saves overwrites the stored tree.
func (s *Store) Update(ctx context.Context, roomID, userID uuid.UUID, name string, views []models.View) (*models.Room, error) {
	room, err := s.getByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasAccess(userID) {
		return nil, ErrAccessDenied
	}

	if name != "" {
		room.Name = name
	}
	if views != nil {
		room.Views = views
	}
	room.UpdatedAt = time.Now()

	viewsJSON, err := room.ViewsJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize views: %w", err)
	}

	query := `UPDATE rooms SET name = $2, views = $3, updated_at = $4 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, room.ID, room.Name, viewsJSON, room.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}
	return room, nil
}

// Share adds a collaborator. Only the owner may share.
func (s *Store) Share(ctx context.Context, roomID, ownerID, collaboratorID uuid.UUID) error {
	room, err := s.getByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != ownerID {
		return ErrAccessDenied
	}
	for _, c := range room.Collaborators {
		if c == collaboratorID {
			return ErrAlreadyCollaborator
		}
	}

	query := `UPDATE rooms SET collaborators = array_append(collaborators, $2), updated_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, roomID, collaboratorID); err != nil {
		return fmt.Errorf("failed to share room: %w", err)
	}
	return nil
}

// JoinByCode adds the user as a collaborator on the room matching the access
// code.
func (s *Store) JoinByCode(ctx context.Context, accessCode string, userID uuid.UUID) (*models.Room, error) {
	room, err := s.getByCode(ctx, accessCode)
	if err != nil {
		return nil, err
	}
	if room.HasAccess(userID) {
		return nil, ErrAlreadyCollaborator
	}

	query := `UPDATE rooms SET collaborators = array_append(collaborators, $2), updated_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, room.ID, userID); err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}
	room.Collaborators = append(room.Collaborators, userID)
	return room, nil
}

// Delete removes a room. Only the owner may delete.
func (s *Store) Delete(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := s.getByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != userID {
		return ErrAccessDenied
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

func (s *Store) getByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	query := `
		SELECT id, name, owner_id, collaborators, access_code, views, created_at, updated_at
		FROM rooms WHERE id = $1
	`
	return s.queryOne(ctx, query, roomID)
}

func (s *Store) getByCode(ctx context.Context, code string) (*models.Room, error) {
	query := `
		SELECT id, name, owner_id, collaborators, access_code, views, created_at, updated_at
		FROM rooms WHERE access_code = $1
	`
	return s.queryOne(ctx, query, code)
}

func (s *Store) queryOne(ctx context.Context, query string, arg interface{}) (*models.Room, error) {
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row scanner) (*models.Room, error) {
	room := &models.Room{}
	var collaborators pq.StringArray
	var views []byte

	err := row.Scan(&room.ID, &room.Name, &room.OwnerID, &collaborators,
		&room.AccessCode, &views, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return nil, err
	}

	room.Collaborators = make([]uuid.UUID, 0, len(collaborators))
	for _, c := range collaborators {
		id, err := uuid.Parse(c)
		if err != nil {
			return nil, fmt.Errorf("invalid collaborator id %q: %w", c, err)
		}
		room.Collaborators = append(room.Collaborators, id)
	}

	if err := json.Unmarshal(views, &room.Views); err != nil {
		return nil, fmt.Errorf("failed to decode views: %w", err)
	}
	return room, nil
}

func collaboratorArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

const accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateAccessCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(accessCodeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate access code: %w", err)
		}
		code[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
