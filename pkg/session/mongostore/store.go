// Package mongostore implements session.Store on MongoDB.
//
// Sessions live in the "sessions" collection keyed by an int64 id taken from
// the "counters" collection. Named sections live in "session_sections" with a
// compound {session_id, name} id. Call EnsureIndexes once at startup.
//
// MongoDB has no row locks outside multi-document transactions, so like the
// Redis store every section mode reads the latest written value.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongokit "github.com/dmitrymomot/sessionkit/pkg/mongo"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

const (
	sessionsCollection = "sessions"
	sectionsCollection = "session_sections"
	countersCollection = "counters"
)

type sessionDoc struct {
	ID              int64     `bson:"_id"`
	CompanyID       int64     `bson:"company_id"`
	UserID          int64     `bson:"user_id"`
	ProfileID       int64     `bson:"profile_id"`
	LanguageID      string    `bson:"language_id"`
	Token           string    `bson:"token"`
	CSRFToken       string    `bson:"csrf_token"`
	HasFlashMessage bool      `bson:"has_flash_message"`
	Data            []byte    `bson:"data"`
	LastRequestAt   time.Time `bson:"last_request_at"`
}

func (d *sessionDoc) record() *session.Record {
	return &session.Record{
		CompanyID:       d.CompanyID,
		ID:              d.ID,
		Token:           d.Token,
		CSRFToken:       d.CSRFToken,
		UserID:          d.UserID,
		LanguageID:      d.LanguageID,
		ProfileID:       d.ProfileID,
		LastRequestAt:   d.LastRequestAt.UTC(),
		HasFlashMessage: d.HasFlashMessage,
		Data:            d.Data,
	}
}

type sectionKey struct {
	SessionID int64  `bson:"session_id"`
	Name      string `bson:"name"`
}

type sectionDoc struct {
	Key       sectionKey `bson:"_id"`
	CompanyID int64      `bson:"company_id"`
	Data      []byte     `bson:"data"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

// Store is a MongoDB session.Store.
type Store struct {
	sessions *mongo.Collection
	sections *mongo.Collection
	counters *mongo.Collection
	profile  session.ProfileFunc
	now      func() time.Time
}

var _ session.Store = (*Store)(nil)

type Option func(*Store)

func WithProfile(fn session.ProfileFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.profile = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Store on db.
func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{
		sessions: db.Collection(sessionsCollection),
		sections: db.Collection(sectionsCollection),
		counters: db.Collection(countersCollection),
		profile:  session.DefaultProfile,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndexes creates the unique token index and the lookup indexes used by
// the destroy and purge operations. It is safe to call on every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "last_request_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongostore: ensure indexes: %w", err)
	}
	return nil
}

// timestamp truncates to the millisecond precision of BSON dates.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": sessionsCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (s *Store) StartSession(ctx context.Context, companyID int64, languageID, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, session.AnonymousUserID)
	if err != nil {
		return nil, err
	}

	id, err := s.nextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("mongostore: start session: %w", err)
	}

	doc := sessionDoc{
		ID:            id,
		CompanyID:     companyID,
		UserID:        session.AnonymousUserID,
		ProfileID:     profileID,
		LanguageID:    languageID,
		Token:         token,
		CSRFToken:     csrfToken,
		LastRequestAt: s.timestamp(),
	}
	if _, err := s.sessions.InsertOne(ctx, doc); err != nil {
		if mongokit.IsDuplicateKeyError(err) {
			return nil, errors.Join(session.ErrDuplicateToken, err)
		}
		return nil, fmt.Errorf("mongostore: start session: %w", err)
	}
	return doc.record(), nil
}

// GetSession stamps the new last request time and returns the document as it
// was before the update.
func (s *Store) GetSession(ctx context.Context, companyID int64, token string) (*session.Record, error) {
	var doc sessionDoc
	err := s.sessions.FindOneAndUpdate(ctx,
		bson.M{"company_id": companyID, "token": token},
		bson.M{"$set": bson.M{"last_request_at": s.timestamp()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&doc)
	if err != nil {
		if mongokit.IsNotFoundError(err) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("mongostore: get session: %w", err)
	}
	return doc.record(), nil
}

func (s *Store) Login(ctx context.Context, companyID, sessionID, userID int64, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}
	rec, err := s.transition(ctx, companyID, sessionID, bson.M{
		"user_id":    userID,
		"profile_id": profileID,
		"token":      token,
		"csrf_token": csrfToken,
	})
	return rec, transitionErr("login", err)
}

func (s *Store) Logout(ctx context.Context, companyID, sessionID int64, languageID, token, csrfToken string) (*session.Record, error) {
	profileID, err := s.profile(ctx, companyID, session.AnonymousUserID)
	if err != nil {
		return nil, err
	}
	rec, err := s.transition(ctx, companyID, sessionID, bson.M{
		"user_id":     session.AnonymousUserID,
		"profile_id":  profileID,
		"language_id": languageID,
		"token":       token,
		"csrf_token":  csrfToken,
	})
	return rec, transitionErr("logout", err)
}

// transition applies set on top of a cleared payload and drops the sections.
func (s *Store) transition(ctx context.Context, companyID, sessionID int64, set bson.M) (*session.Record, error) {
	set["has_flash_message"] = false
	set["data"] = nil
	set["last_request_at"] = s.timestamp()

	var doc sessionDoc
	err := s.sessions.FindOneAndUpdate(ctx,
		bson.M{"_id": sessionID, "company_id": companyID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, err
	}
	if err := s.dropSections(ctx, sessionID); err != nil {
		return nil, err
	}
	return doc.record(), nil
}

func transitionErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case mongokit.IsNotFoundError(err):
		return session.ErrSessionNotFound
	case mongokit.IsDuplicateKeyError(err):
		return errors.Join(session.ErrDuplicateToken, err)
	default:
		return fmt.Errorf("mongostore: %s: %w", op, err)
	}
}

func (s *Store) UpdateSession(ctx context.Context, companyID, sessionID int64, hasFlashMessage bool, data []byte) error {
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID, "company_id": companyID},
		bson.M{"$set": bson.M{"has_flash_message": hasFlashMessage, "data": data}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: update session: %w", err)
	}
	return nil
}

func (s *Store) UpdateLanguage(ctx context.Context, companyID, sessionID int64, languageID string) error {
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID, "company_id": companyID},
		bson.M{"$set": bson.M{"language_id": languageID}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: update language: %w", err)
	}
	return nil
}

func (s *Store) DestroyAllSessionsOfUser(ctx context.Context, companyID, userID int64) error {
	if _, err := s.deleteWhere(ctx, bson.M{"company_id": companyID, "user_id": userID}); err != nil {
		return fmt.Errorf("mongostore: destroy sessions of user: %w", err)
	}
	return nil
}

func (s *Store) DestroyOtherSessionsOfUser(ctx context.Context, companyID, sessionID int64) error {
	var owner struct {
		UserID int64 `bson:"user_id"`
	}
	err := s.sessions.FindOne(ctx,
		bson.M{"_id": sessionID, "company_id": companyID},
		options.FindOne().SetProjection(bson.M{"user_id": 1}),
	).Decode(&owner)
	if err != nil {
		if mongokit.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("mongostore: destroy other sessions: %w", err)
	}

	_, err = s.deleteWhere(ctx, bson.M{
		"company_id": companyID,
		"user_id":    owner.UserID,
		"_id":        bson.M{"$ne": sessionID},
	})
	if err != nil {
		return fmt.Errorf("mongostore: destroy other sessions: %w", err)
	}
	return nil
}

// GetNamedSection ignores mode; see the package doc.
func (s *Store) GetNamedSection(ctx context.Context, companyID, sessionID int64, name string, _ session.Mode) ([]byte, error) {
	var doc sectionDoc
	err := s.sections.FindOne(ctx, bson.M{
		"_id":        sectionKey{SessionID: sessionID, Name: name},
		"company_id": companyID,
	}).Decode(&doc)
	if err != nil {
		if mongokit.IsNotFoundError(err) {
			return nil, session.ErrSectionNotFound
		}
		return nil, fmt.Errorf("mongostore: get section %q: %w", name, err)
	}
	if doc.Data == nil {
		doc.Data = []byte{}
	}
	return doc.Data, nil
}

// UpdateNamedSection upserts the section when the session belongs to the company.
func (s *Store) UpdateNamedSection(ctx context.Context, companyID, sessionID int64, name string, data []byte) error {
	n, err := s.sessions.CountDocuments(ctx, bson.M{"_id": sessionID, "company_id": companyID})
	if err != nil {
		return fmt.Errorf("mongostore: update section %q: %w", name, err)
	}
	if n == 0 {
		return nil
	}

	if data == nil {
		data = []byte{}
	}
	_, err = s.sections.UpdateOne(ctx,
		bson.M{"_id": sectionKey{SessionID: sessionID, Name: name}},
		bson.M{"$set": bson.M{"company_id": companyID, "data": data, "updated_at": s.timestamp()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongostore: update section %q: %w", name, err)
	}
	return nil
}

func (s *Store) DeleteNamedSection(ctx context.Context, companyID, sessionID int64, name string) error {
	_, err := s.sections.DeleteOne(ctx, bson.M{
		"_id":        sectionKey{SessionID: sessionID, Name: name},
		"company_id": companyID,
	})
	if err != nil {
		return fmt.Errorf("mongostore: delete section %q: %w", name, err)
	}
	return nil
}

// PurgeExpired deletes sessions idle since before cutoff along with their sections.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.deleteWhere(ctx, bson.M{"last_request_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("mongostore: purge expired: %w", err)
	}
	return n, nil
}

// deleteWhere removes the sessions matching filter and their sections.
func (s *Store) deleteWhere(ctx context.Context, filter bson.M) (int64, error) {
	cur, err := s.sessions.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}
	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	if _, err := s.sections.DeleteMany(ctx, bson.M{"_id.session_id": bson.M{"$in": ids}}); err != nil {
		return 0, err
	}
	res, err := s.sessions.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) dropSections(ctx context.Context, sessionID int64) error {
	_, err := s.sections.DeleteMany(ctx, bson.M{"_id.session_id": sessionID})
	return err
}
