package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-resource-core/internal/models"
	appErrors "github.com/noah-isme/sma-resource-core/pkg/errors"
)

// snapshotter is implemented by fakes that can roll back to the state they had
// when a transaction started.
type snapshotter interface {
	snapshot() func()
}

type fakeTx struct {
	mu      sync.Mutex
	stores  []snapshotter
	commits int
	aborts  int
}

func newFakeTx(stores ...snapshotter) *fakeTx {
	return &fakeTx{stores: stores}
}

func (f *fakeTx) WithinTx(ctx context.Context, _ *sql.TxOptions, fn func(exec sqlx.ExtContext) error) error {
	restores := make([]func(), 0, len(f.stores))
	for _, s := range f.stores {
		restores = append(restores, s.snapshot())
	}
	if err := fn(nil); err != nil {
		for _, restore := range restores {
			restore()
		}
		f.mu.Lock()
		f.aborts++
		f.mu.Unlock()
		return err
	}
	f.mu.Lock()
	f.commits++
	f.mu.Unlock()
	return nil
}

type fakeBookingStore struct {
	mu        sync.Mutex
	items     map[string]models.Booking
	seq       int
	createErr error
	// onOverlapQuery runs after candidates are read, before the caller decides.
	onOverlapQuery func()
}

func newFakeBookingStore(bookings ...models.Booking) *fakeBookingStore {
	store := &fakeBookingStore{items: map[string]models.Booking{}}
	for _, b := range bookings {
		store.items[b.ID] = b
	}
	return store
}

func (f *fakeBookingStore) snapshot() func() {
	f.mu.Lock()
	saved := make(map[string]models.Booking, len(f.items))
	for k, v := range f.items {
		saved[k] = v
	}
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.items = saved
		f.mu.Unlock()
	}
}

func (f *fakeBookingStore) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

// FindConfirmedOverlapping returns every confirmed booking in the room so the
// caller's own overlap predicate decides.
func (f *fakeBookingStore) FindConfirmedOverlapping(_ context.Context, _ sqlx.ExtContext, roomID string, _, _ time.Time, excludeID string) ([]models.Booking, error) {
	f.mu.Lock()
	out := make([]models.Booking, 0)
	for _, b := range f.items {
		if b.RoomID == roomID && b.Confirmed() && b.ID != excludeID {
			out = append(out, b)
		}
	}
	hook := f.onOverlapQuery
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeBookingStore) Create(_ context.Context, _ sqlx.ExtContext, booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	if booking.ID == "" {
		booking.ID = fmt.Sprintf("booking-%d", f.seq)
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusConfirmed
	}
	f.items[booking.ID] = *booking
	return nil
}

func (f *fakeBookingStore) Update(_ context.Context, _ sqlx.ExtContext, booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[booking.ID]; !ok {
		return sql.ErrNoRows
	}
	f.items[booking.ID] = *booking
	return nil
}

func (f *fakeBookingStore) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id string, status models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	b.Status = status
	f.items[id] = b
	return nil
}

func (f *fakeBookingStore) List(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	window := models.Interval{Start: filter.From, End: filter.To}
	out := make([]models.Booking, 0)
	for _, b := range f.items {
		if filter.RoomID != "" && b.RoomID != filter.RoomID {
			continue
		}
		if filter.BookerID != "" && b.BookerID != filter.BookerID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if !b.Interval().Overlaps(window) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// confirmedIn returns the confirmed bookings held for a room.
func (f *fakeBookingStore) confirmedIn(roomID string) []models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Booking, 0)
	for _, b := range f.items {
		if b.RoomID == roomID && b.Confirmed() {
			out = append(out, b)
		}
	}
	return out
}

type fakeRoomStore struct {
	rooms map[string]models.Room
	locks int
	mu    sync.Mutex
}

func newFakeRoomStore(rooms ...models.Room) *fakeRoomStore {
	store := &fakeRoomStore{rooms: map[string]models.Room{}}
	for _, r := range rooms {
		store.rooms[r.ID] = r
	}
	return store
}

func (f *fakeRoomStore) FindByID(_ context.Context, id string) (*models.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &room, nil
}

func (f *fakeRoomStore) LockByID(ctx context.Context, _ sqlx.ExtContext, id string) (*models.Room, error) {
	f.mu.Lock()
	f.locks++
	f.mu.Unlock()
	return f.FindByID(ctx, id)
}

func (f *fakeRoomStore) ListActive(context.Context) ([]models.Room, error) {
	out := make([]models.Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeClassStore struct {
	classes map[string]models.Class
}

func newFakeClassStore(classes ...models.Class) *fakeClassStore {
	store := &fakeClassStore{classes: map[string]models.Class{}}
	for _, c := range classes {
		store.classes[c.ID] = c
	}
	return store
}

func (f *fakeClassStore) FindByID(_ context.Context, id string) (*models.Class, error) {
	class, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

type fakeRosterStore struct {
	enrollments []models.Enrollment
	// teaching holds teacherID+"/"+studentID pairs that share a class.
	teaching map[string]bool
	err      error
}

func (f *fakeRosterStore) ListActiveByClass(_ context.Context, _ sqlx.ExtContext, classID string) ([]models.Enrollment, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Enrollment, 0)
	for _, e := range f.enrollments {
		if e.ClassID == classID && e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRosterStore) TeacherTeachesStudent(_ context.Context, teacherID, studentID string) (bool, error) {
	return f.teaching[teacherID+"/"+studentID], nil
}

type attendanceKey struct {
	studentID string
	classID   string
	date      string
}

type fakeAttendanceStore struct {
	mu        sync.Mutex
	items     map[string]models.AttendanceRecord
	byKey     map[attendanceKey]string
	seq       int
	failAfter int
	writes    int
	lastList  models.AttendanceFilter
	// classOwners maps class id to teacher id for ClassTeacherID filtering.
	classOwners map[string]string
}

func newFakeAttendanceStore() *fakeAttendanceStore {
	return &fakeAttendanceStore{items: map[string]models.AttendanceRecord{}, byKey: map[attendanceKey]string{}, failAfter: -1}
}

func keyOf(r models.AttendanceRecord) attendanceKey {
	return attendanceKey{studentID: r.StudentID, classID: r.ClassID, date: r.Date.Format(calendarDateLayout)}
}

func (f *fakeAttendanceStore) snapshot() func() {
	f.mu.Lock()
	items := make(map[string]models.AttendanceRecord, len(f.items))
	for k, v := range f.items {
		items[k] = v
	}
	byKey := make(map[attendanceKey]string, len(f.byKey))
	for k, v := range f.byKey {
		byKey[k] = v
	}
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.items = items
		f.byKey = byKey
		f.mu.Unlock()
	}
}

func (f *fakeAttendanceStore) write() error {
	f.writes++
	if f.failAfter >= 0 && f.writes > f.failAfter {
		return fmt.Errorf("disk full")
	}
	return nil
}

func (f *fakeAttendanceStore) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (f *fakeAttendanceStore) FindByKey(_ context.Context, _ sqlx.ExtContext, studentID, classID string, date time.Time) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byKey[attendanceKey{studentID: studentID, classID: classID, date: date.Format(calendarDateLayout)}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r := f.items[id]
	return &r, nil
}

func (f *fakeAttendanceStore) Create(_ context.Context, _ sqlx.ExtContext, record *models.AttendanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return err
	}
	if _, exists := f.byKey[keyOf(*record)]; exists {
		return fmt.Errorf("duplicate attendance key")
	}
	f.seq++
	record.ID = fmt.Sprintf("att-%d", f.seq)
	f.items[record.ID] = *record
	f.byKey[keyOf(*record)] = record.ID
	return nil
}

func (f *fakeAttendanceStore) CreateKeepingNotes(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	return f.Create(ctx, exec, record)
}

func (f *fakeAttendanceStore) Update(_ context.Context, _ sqlx.ExtContext, record *models.AttendanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return err
	}
	if _, ok := f.items[record.ID]; !ok {
		return sql.ErrNoRows
	}
	f.items[record.ID] = *record
	return nil
}

func (f *fakeAttendanceStore) ListByClassAndDate(_ context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AttendanceRecord, 0)
	day := date.Format(calendarDateLayout)
	for _, r := range f.items {
		if r.ClassID == classID && r.Date.Format(calendarDateLayout) == day {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f *fakeAttendanceStore) List(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = filter
	out := make([]models.AttendanceRecord, 0)
	for _, r := range f.items {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassID != "" && r.ClassID != filter.ClassID {
			continue
		}
		if filter.ClassTeacherID != "" && f.classOwners != nil && f.classOwners[r.ClassID] != filter.ClassTeacherID {
			continue
		}
		if filter.DateFrom != nil && r.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && r.Date.After(*filter.DateTo) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f *fakeAttendanceStore) DistinctDates(_ context.Context, classID string) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]time.Time{}
	for _, r := range f.items {
		if r.ClassID == classID {
			seen[r.Date.Format(calendarDateLayout)] = r.Date
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

func (f *fakeAttendanceStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type memoryCacheRepo struct {
	mu      sync.Mutex
	values  map[string][]byte
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

func (m *memoryCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}
