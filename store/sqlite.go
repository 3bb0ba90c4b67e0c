package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/relayerr"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const ddl = `
CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY NOT NULL,
	value TEXT NOT NULL,
	type  TEXT NOT NULL DEFAULT 'str'
);
CREATE TABLE IF NOT EXISTS instances (
	domain    TEXT PRIMARY KEY NOT NULL,
	actor     TEXT UNIQUE,
	inbox     TEXT UNIQUE NOT NULL,
	followid  TEXT,
	software  TEXT,
	accepted  INTEGER NOT NULL DEFAULT 0,
	created   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS whitelist (
	domain  TEXT PRIMARY KEY NOT NULL,
	created TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS domain_bans (
	domain  TEXT PRIMARY KEY NOT NULL,
	reason  TEXT,
	note    TEXT,
	created TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS software_bans (
	name    TEXT PRIMARY KEY NOT NULL,
	reason  TEXT,
	note    TEXT,
	created TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS cache (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     TEXT NOT NULL,
	type      TEXT NOT NULL,
	updated   TIMESTAMP NOT NULL,
	PRIMARY KEY (namespace, key)
);
`

// SQLiteStore is the default Store backend, a single pooled
// *sql.DB tuned the way gnp-x-stegodon's db.GetDB() tunes its own.
type SQLiteStore struct {
	db    *sql.DB
	now   Clock
	level chan string // log-level changes, consumed by the push workers
}

// Open opens (creating if needed) a SQLite database at path, applies the
// PRAGMA tuning and schema, and returns a ready Store. levelCh, if non-nil,
// receives log-level strings whenever PutConfig(log-level, ...) succeeds.
func Open(path string, levelCh chan string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA auto_vacuum=INCREMENTAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now, level: levelCh}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	return s.wrapTransaction(func(tx *sql.Tx) error {
		for _, stmt := range strings.Split(ddl, ";\n") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		var count int
		if err := tx.QueryRow("SELECT COUNT(*) FROM config WHERE key = ?", ConfigSchemaVersion).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			if _, err := tx.Exec("INSERT INTO config(key, value, type) VALUES (?, ?, 'int')",
				ConfigSchemaVersion, strconv.Itoa(schemaVersion)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) wrapTransaction(fn func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanInstance(row interface{ Scan(...any) error }) (*domain.Instance, error) {
	var in domain.Instance
	var actor, followID, software sql.NullString
	var accepted int
	var created time.Time
	if err := row.Scan(&in.Domain, &actor, &in.Inbox, &followID, &software, &accepted, &created); err != nil {
		return nil, err
	}
	in.Actor = actor.String
	in.FollowID = followID.String
	in.Software = software.String
	in.Accepted = accepted != 0
	in.CreatedAt = created
	return &in, nil
}

func (s *SQLiteStore) GetInstance(value string) (*domain.Instance, error) {
	row := s.db.QueryRow(`SELECT domain, actor, inbox, followid, software, accepted, created
		FROM instances WHERE domain = ? OR actor = ? OR inbox = ?`, value, value, value)
	in, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relayerr.New(relayerr.NotFound, "instance not found")
	}
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "get instance", err)
	}
	return in, nil
}

func (s *SQLiteStore) PutInstance(in domain.Instance) error {
	existing, err := s.GetInstance(in.Domain)
	if err != nil && relayerr.KindOf(err) != relayerr.NotFound {
		return err
	}

	created := s.now()
	if existing != nil {
		if in.Actor == "" {
			in.Actor = existing.Actor
		}
		if in.Inbox == "" {
			in.Inbox = existing.Inbox
		}
		if in.FollowID == "" {
			in.FollowID = existing.FollowID
		}
		if in.Software == "" {
			in.Software = existing.Software
		}
		created = existing.CreatedAt
	}

	_, err = s.db.Exec(`INSERT INTO instances(domain, actor, inbox, followid, software, accepted, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET actor=excluded.actor, inbox=excluded.inbox,
			followid=excluded.followid, software=excluded.software, accepted=excluded.accepted`,
		in.Domain, nullable(in.Actor), in.Inbox, nullable(in.FollowID), nullable(in.Software), boolToInt(in.Accepted), created)
	if err != nil {
		if isUniqueViolation(err) {
			return relayerr.Wrap(relayerr.Conflict, "instance conflict", err)
		}
		return relayerr.Wrap(relayerr.Internal, "put instance", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteInstance(dom string) error {
	res, err := s.db.Exec(`DELETE FROM instances WHERE domain = ?`, dom)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "delete instance", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return relayerr.New(relayerr.NotFound, "instance not found")
	}
	if n > 1 {
		return relayerr.New(relayerr.Internal, "delete instance affected more than one row")
	}
	return nil
}

func (s *SQLiteStore) GetRequests() ([]domain.Instance, error) {
	rows, err := s.db.Query(`SELECT domain, actor, inbox, followid, software, accepted, created
		FROM instances WHERE accepted = 0 ORDER BY created`)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "get requests", err)
	}
	defer rows.Close()

	var out []domain.Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "scan request", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PutRequestResponse(dom string, accept bool) error {
	return s.wrapTransaction(func(tx *sql.Tx) error {
		var accepted int
		err := tx.QueryRow(`SELECT accepted FROM instances WHERE domain = ?`, dom).Scan(&accepted)
		if errors.Is(err, sql.ErrNoRows) {
			return relayerr.New(relayerr.NotFound, "no pending request for "+dom)
		}
		if err != nil {
			return relayerr.Wrap(relayerr.Internal, "put request response", err)
		}
		if accepted != 0 {
			return relayerr.New(relayerr.NotFound, "no pending request for "+dom)
		}
		if accept {
			_, err = tx.Exec(`UPDATE instances SET accepted = 1 WHERE domain = ?`, dom)
		} else {
			_, err = tx.Exec(`DELETE FROM instances WHERE domain = ?`, dom)
		}
		if err != nil {
			return relayerr.Wrap(relayerr.Internal, "put request response", err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetDomainBan(dom string) (*domain.DomainBan, error) {
	var b domain.DomainBan
	var reason, note sql.NullString
	err := s.db.QueryRow(`SELECT domain, reason, note, created FROM domain_bans WHERE domain = ?`, dom).
		Scan(&b.Domain, &reason, &note, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relayerr.New(relayerr.NotFound, "domain ban not found")
	}
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "get domain ban", err)
	}
	b.Reason, b.Note = reason.String, note.String
	return &b, nil
}

// PutDomainBan inserts the ban and evicts any instance row for the same
// domain in one transaction, so a banned domain can never keep a live
// instance row (and therefore never keep receiving fan-out).
func (s *SQLiteStore) PutDomainBan(ban domain.DomainBan) error {
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = s.now()
	}
	return s.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO domain_bans(domain, reason, note, created) VALUES (?, ?, ?, ?)`,
			ban.Domain, nullable(ban.Reason), nullable(ban.Note), ban.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return relayerr.Wrap(relayerr.Conflict, "domain already banned", err)
			}
			return relayerr.Wrap(relayerr.Internal, "put domain ban", err)
		}
		if _, err := tx.Exec(`DELETE FROM instances WHERE domain = ?`, ban.Domain); err != nil {
			return relayerr.Wrap(relayerr.Internal, "put domain ban: evict instance", err)
		}
		return nil
	})
}

func (s *SQLiteStore) UpdateDomainBan(ban domain.DomainBan) error {
	res, err := s.db.Exec(`UPDATE domain_bans SET reason = ?, note = ? WHERE domain = ?`,
		nullable(ban.Reason), nullable(ban.Note), ban.Domain)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "update domain ban", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relayerr.New(relayerr.NotFound, "domain ban not found")
	}
	return nil
}

func (s *SQLiteStore) DeleteDomainBan(dom string) error {
	res, err := s.db.Exec(`DELETE FROM domain_bans WHERE domain = ?`, dom)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "delete domain ban", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return relayerr.New(relayerr.NotFound, "domain ban not found")
	}
	if n > 1 {
		return relayerr.New(relayerr.Internal, "delete domain ban affected more than one row")
	}
	return nil
}

func (s *SQLiteStore) ListDomainBans() ([]domain.DomainBan, error) {
	rows, err := s.db.Query(`SELECT domain, reason, note, created FROM domain_bans ORDER BY domain`)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "list domain bans", err)
	}
	defer rows.Close()
	var out []domain.DomainBan
	for rows.Next() {
		var b domain.DomainBan
		var reason, note sql.NullString
		if err := rows.Scan(&b.Domain, &reason, &note, &b.CreatedAt); err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "scan domain ban", err)
		}
		b.Reason, b.Note = reason.String, note.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetSoftwareBan(name string) (*domain.SoftwareBan, error) {
	name = strings.ToLower(name)
	var b domain.SoftwareBan
	var reason, note sql.NullString
	err := s.db.QueryRow(`SELECT name, reason, note, created FROM software_bans WHERE name = ?`, name).
		Scan(&b.Name, &reason, &note, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relayerr.New(relayerr.NotFound, "software ban not found")
	}
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "get software ban", err)
	}
	b.Reason, b.Note = reason.String, note.String
	return &b, nil
}

func (s *SQLiteStore) PutSoftwareBan(ban domain.SoftwareBan) error {
	ban.Name = strings.ToLower(ban.Name)
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = s.now()
	}
	_, err := s.db.Exec(`INSERT INTO software_bans(name, reason, note, created) VALUES (?, ?, ?, ?)`,
		ban.Name, nullable(ban.Reason), nullable(ban.Note), ban.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return relayerr.Wrap(relayerr.Conflict, "software already banned", err)
		}
		return relayerr.Wrap(relayerr.Internal, "put software ban", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSoftwareBan(ban domain.SoftwareBan) error {
	ban.Name = strings.ToLower(ban.Name)
	res, err := s.db.Exec(`UPDATE software_bans SET reason = ?, note = ? WHERE name = ?`,
		nullable(ban.Reason), nullable(ban.Note), ban.Name)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "update software ban", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relayerr.New(relayerr.NotFound, "software ban not found")
	}
	return nil
}

func (s *SQLiteStore) DeleteSoftwareBan(name string) error {
	name = strings.ToLower(name)
	res, err := s.db.Exec(`DELETE FROM software_bans WHERE name = ?`, name)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "delete software ban", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return relayerr.New(relayerr.NotFound, "software ban not found")
	}
	if n > 1 {
		return relayerr.New(relayerr.Internal, "delete software ban affected more than one row")
	}
	return nil
}

func (s *SQLiteStore) ListSoftwareBans() ([]domain.SoftwareBan, error) {
	rows, err := s.db.Query(`SELECT name, reason, note, created FROM software_bans ORDER BY name`)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "list software bans", err)
	}
	defer rows.Close()
	var out []domain.SoftwareBan
	for rows.Next() {
		var b domain.SoftwareBan
		var reason, note sql.NullString
		if err := rows.Scan(&b.Name, &reason, &note, &b.CreatedAt); err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "scan software ban", err)
		}
		b.Reason, b.Note = reason.String, note.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetDomainWhitelist(dom string) (*domain.Whitelist, error) {
	var w domain.Whitelist
	err := s.db.QueryRow(`SELECT domain, created FROM whitelist WHERE domain = ?`, dom).Scan(&w.Domain, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relayerr.New(relayerr.NotFound, "not whitelisted")
	}
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "get whitelist", err)
	}
	return &w, nil
}

func (s *SQLiteStore) PutDomainWhitelist(w domain.Whitelist) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = s.now()
	}
	_, err := s.db.Exec(`INSERT INTO whitelist(domain, created) VALUES (?, ?)
		ON CONFLICT(domain) DO NOTHING`, w.Domain, w.CreatedAt)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "put whitelist", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteDomainWhitelist(dom string) error {
	res, err := s.db.Exec(`DELETE FROM whitelist WHERE domain = ?`, dom)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "delete whitelist", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return relayerr.New(relayerr.NotFound, "not whitelisted")
	}
	if n > 1 {
		return relayerr.New(relayerr.Internal, "delete whitelist affected more than one row")
	}
	return nil
}

func (s *SQLiteStore) ListDomainWhitelist() ([]domain.Whitelist, error) {
	rows, err := s.db.Query(`SELECT domain, created FROM whitelist ORDER BY domain`)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "list whitelist", err)
	}
	defer rows.Close()
	var out []domain.Whitelist
	for rows.Next() {
		var w domain.Whitelist
		if err := rows.Scan(&w.Domain, &w.CreatedAt); err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "scan whitelist", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetConfig(key string) (string, string, error) {
	var value, typ string
	err := s.db.QueryRow(`SELECT value, type FROM config WHERE key = ?`, key).Scan(&value, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", relayerr.New(relayerr.NotFound, "config key not set: "+key)
	}
	if err != nil {
		return "", "", relayerr.Wrap(relayerr.Internal, "get config", err)
	}
	return value, typ, nil
}

func (s *SQLiteStore) GetConfigAll() ([]domain.ConfigEntry, error) {
	rows, err := s.db.Query(`SELECT key, value, type FROM config ORDER BY key`)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "get config all", err)
	}
	defer rows.Close()
	var out []domain.ConfigEntry
	for rows.Next() {
		var e domain.ConfigEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.Type); err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "scan config", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PutConfig validates key against the closed set, coerces value per its
// declared type, and propagates log-level changes to s.level.
func (s *SQLiteStore) PutConfig(key, value string) error {
	typ, ok := KnownConfigKeys(key)
	if !ok {
		return relayerr.New(relayerr.Validation, "unknown config key: "+key)
	}
	switch typ {
	case "int":
		if _, err := strconv.Atoi(value); err != nil {
			return relayerr.Wrap(relayerr.Validation, "config value must be an int", err)
		}
	case "bool":
		if _, err := strconv.ParseBool(value); err != nil {
			return relayerr.Wrap(relayerr.Validation, "config value must be a bool", err)
		}
	}

	_, err := s.db.Exec(`INSERT INTO config(key, value, type) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value, typ)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "put config", err)
	}

	if key == ConfigLogLevel && s.level != nil {
		select {
		case s.level <- value:
		default:
		}
	}
	return nil
}

// DistillInboxes returns every accepted instance whose domain is neither
// senderDomain nor objectDomain — the fan-out set for handle_relay and
// handle_forward.
func (s *SQLiteStore) DistillInboxes(senderDomain, objectDomain string) ([]domain.Instance, error) {
	rows, err := s.db.Query(`SELECT domain, actor, inbox, followid, software, accepted, created
		FROM instances WHERE accepted = 1 AND domain != ? AND domain != ?`, senderDomain, objectDomain)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "distill inboxes", err)
	}
	defer rows.Close()
	var out []domain.Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "scan instance", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListAcceptedInstances() ([]domain.Instance, error) {
	rows, err := s.db.Query(`SELECT domain, actor, inbox, followid, software, accepted, created
		FROM instances WHERE accepted = 1 ORDER BY domain`)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "list accepted instances", err)
	}
	defer rows.Close()
	var out []domain.Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "scan instance", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ Store = (*SQLiteStore)(nil)

// DB exposes the underlying pool so the SQL-backed Cache implementation
// (package cache) can share the same connection, per spec.md §9's "the
// relational cache variant reuses the primary store pool."
func (s *SQLiteStore) DB() *sql.DB { return s.db }
