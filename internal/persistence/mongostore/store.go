// Package mongostore stores members, attendance and settings as MongoDB documents.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"example.com/gym/internal/domain"
)

const (
	membersCollection    = "members"
	attendanceCollection = "attendance"
	settingsCollection   = "settings"
)

// Connect dials uri and verifies the deployment is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Store implements the attendance, member and settings repositories on one database.
type Store struct {
	members    *mongo.Collection
	attendance *mongo.Collection
	settings   *mongo.Collection
	now        func() time.Time
}

// NewStore binds a Store to db.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		members:    db.Collection(membersCollection),
		attendance: db.Collection(attendanceCollection),
		settings:   db.Collection(settingsCollection),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the indexes queries and the one-settings-per-admin rule rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.settings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "adminId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("settings_admin_unique"),
	}); err != nil {
		return fmt.Errorf("settings index: %w", err)
	}
	if _, err := s.attendance.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "adminId", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetName("attendance_admin_date"),
	}); err != nil {
		return fmt.Errorf("attendance index: %w", err)
	}
	if _, err := s.members.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "adminId", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetName("members_admin_name"),
	}); err != nil {
		return fmt.Errorf("members index: %w", err)
	}
	return nil
}

// SaveMember inserts or replaces a member.
func (s *Store) SaveMember(ctx context.Context, member domain.Member) error {
	_, err := s.members.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: member.ID}},
		member,
		options.Replace().SetUpsert(true),
	)
	return err
}

// DeleteMember removes a member and nulls the reference held by its attendance records.
func (s *Store) DeleteMember(ctx context.Context, adminID, memberID string) error {
	if _, err := s.members.DeleteOne(ctx, bson.D{{Key: "_id", Value: memberID}, {Key: "adminId", Value: adminID}}); err != nil {
		return err
	}
	_, err := s.attendance.UpdateMany(ctx,
		bson.D{{Key: "adminId", Value: adminID}, {Key: "memberId", Value: memberID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "memberId", Value: nil}}}},
	)
	return err
}

// FindByIDs implements domain.MemberRepository.
func (s *Store) FindByIDs(ctx context.Context, adminID string, ids []string) (map[string]domain.Member, error) {
	out := make(map[string]domain.Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := s.members.Find(ctx, bson.D{
		{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}},
		{Key: "adminId", Value: adminID},
	})
	if err != nil {
		return nil, err
	}
	var members []domain.Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	for _, m := range members {
		m.JoinedAt = m.JoinedAt.UTC()
		out[m.ID] = m
	}
	return out, nil
}

// List implements domain.MemberRepository.
func (s *Store) List(ctx context.Context, adminID string) ([]domain.Member, error) {
	cursor, err := s.members.Find(ctx,
		bson.D{{Key: "adminId", Value: adminID}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	members := make([]domain.Member, 0)
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	for i := range members {
		members[i].JoinedAt = members[i].JoinedAt.UTC()
	}
	return members, nil
}

// Create implements domain.AttendanceRepository. A taken id is ErrConflict.
func (s *Store) Create(ctx context.Context, record domain.AttendanceRecord) error {
	doc := bson.D{
		{Key: "_id", Value: record.ID},
		{Key: "adminId", Value: record.AdminID},
		{Key: "memberId", Value: nullIfEmpty(record.MemberID)},
		{Key: "date", Value: record.Date},
	}
	_, err := s.attendance.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrConflict
	}
	return err
}

// FindRecord implements domain.AttendanceRepository.
func (s *Store) FindRecord(ctx context.Context, adminID, id string) (*domain.AttendanceRecord, error) {
	var record domain.AttendanceRecord
	err := s.attendance.FindOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "adminId", Value: adminID}}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.Date = record.Date.UTC()
	return &record, nil
}

// ListByPeriod implements domain.AttendanceRepository.
func (s *Store) ListByPeriod(ctx context.Context, adminID string, from, to time.Time) ([]domain.AttendanceRecord, error) {
	cursor, err := s.attendance.Find(ctx,
		bson.D{
			{Key: "adminId", Value: adminID},
			{Key: "date", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lte", Value: to}}},
		},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	records := make([]domain.AttendanceRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Date = records[i].Date.UTC()
	}
	return records, nil
}

// Get implements domain.SettingsRepository.
func (s *Store) Get(ctx context.Context, adminID string) (*domain.Settings, error) {
	var settings domain.Settings
	err := s.settings.FindOne(ctx, bson.D{{Key: "adminId", Value: adminID}}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	normalize(&settings)
	return &settings, nil
}

// GetOrCreate implements domain.SettingsRepository. An upsert whose update
// only carries $setOnInsert leaves existing documents untouched.
func (s *Store) GetOrCreate(ctx context.Context, adminID string, defaults domain.Settings) (domain.Settings, bool, error) {
	defaults.AdminID = adminID
	insert, err := toDocument(defaults)
	if err != nil {
		return domain.Settings{}, false, err
	}

	res, err := s.settings.UpdateOne(ctx,
		bson.D{{Key: "adminId", Value: adminID}},
		bson.D{{Key: "$setOnInsert", Value: insert}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return domain.Settings{}, false, mapError(err)
	}

	current, err := s.Get(ctx, adminID)
	if err != nil {
		return domain.Settings{}, false, err
	}
	if current == nil {
		return domain.Settings{}, false, domain.ErrConflict
	}
	return *current, res.UpsertedCount == 1, nil
}

// Upsert implements domain.SettingsRepository. Patched fields go to $set and
// the remaining defaults to $setOnInsert so one atomic write covers both cases.
func (s *Store) Upsert(ctx context.Context, adminID string, patch domain.SettingsPatch, defaults domain.Settings) (domain.Settings, error) {
	now := s.now()
	set := bson.M{"updatedAt": now}
	for key, value := range patch.Fields() {
		set[key] = value
	}

	defaults.AdminID = adminID
	insert, err := toDocument(defaults)
	if err != nil {
		return domain.Settings{}, err
	}
	for key := range set {
		delete(insert, key)
	}
	insert["adminId"] = adminID

	var out domain.Settings
	err = s.settings.FindOneAndUpdate(ctx,
		bson.D{{Key: "adminId", Value: adminID}},
		bson.D{{Key: "$set", Value: set}, {Key: "$setOnInsert", Value: insert}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return domain.Settings{}, mapError(err)
	}
	normalize(&out)
	return out, nil
}

func toDocument(settings domain.Settings) (bson.M, error) {
	raw, err := bson.Marshal(settings)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return doc, nil
}

func normalize(settings *domain.Settings) {
	settings.CreatedAt = settings.CreatedAt.UTC()
	settings.UpdatedAt = settings.UpdatedAt.UTC()
}

// mapError reports a lost race on the unique adminId index as domain.ErrConflict.
func mapError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrConflict
	}
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
