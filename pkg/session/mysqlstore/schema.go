package mysqlstore

// Table definitions. Sections cascade with their session row.
const (
	createSessions = `CREATE TABLE IF NOT EXISTS sessions (
  id                BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
  company_id        BIGINT          NOT NULL,
  user_id           BIGINT          NOT NULL DEFAULT 0,
  profile_id        BIGINT          NOT NULL,
  language_id       VARCHAR(35)     NOT NULL,
  token             VARCHAR(128)    NOT NULL,
  csrf_token        VARCHAR(128)    NOT NULL,
  has_flash_message TINYINT(1)      NOT NULL DEFAULT 0,
  data              MEDIUMBLOB      NULL,
  last_request_at   DATETIME(6)     NOT NULL,
  created_at        DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
  UNIQUE KEY sessions_token_idx (token),
  KEY sessions_company_user_idx (company_id, user_id),
  KEY sessions_last_request_idx (last_request_at)
) ENGINE=InnoDB`

	createSections = `CREATE TABLE IF NOT EXISTS session_sections (
  session_id BIGINT UNSIGNED NOT NULL,
  name       VARCHAR(64)     NOT NULL,
  data       MEDIUMBLOB      NOT NULL,
  updated_at DATETIME(6)     NOT NULL,
  PRIMARY KEY (session_id, name),
  CONSTRAINT session_sections_session_fk FOREIGN KEY (session_id)
    REFERENCES sessions (id) ON DELETE CASCADE
) ENGINE=InnoDB`
)

const sessionColumns = `id, company_id, user_id, profile_id, language_id, token, csrf_token, has_flash_message, data, last_request_at`

const (
	qInsertSession = `INSERT INTO sessions (company_id, user_id, profile_id, language_id, token, csrf_token, last_request_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	qLockByToken = `SELECT ` + sessionColumns + ` FROM sessions WHERE company_id = ? AND token = ? FOR UPDATE`
	qLockByID    = `SELECT ` + sessionColumns + ` FROM sessions WHERE company_id = ? AND id = ? FOR UPDATE`

	qTouch = `UPDATE sessions SET last_request_at = ? WHERE id = ?`

	qLogin  = `UPDATE sessions SET user_id = ?, profile_id = ?, token = ?, csrf_token = ?, has_flash_message = 0, data = NULL, last_request_at = ? WHERE id = ?`
	qLogout = `UPDATE sessions SET user_id = ?, profile_id = ?, language_id = ?, token = ?, csrf_token = ?, has_flash_message = 0, data = NULL, last_request_at = ? WHERE id = ?`

	qUpdateSession  = `UPDATE sessions SET has_flash_message = ?, data = ? WHERE company_id = ? AND id = ?`
	qUpdateLanguage = `UPDATE sessions SET language_id = ? WHERE company_id = ? AND id = ?`

	qDestroyUser   = `DELETE FROM sessions WHERE company_id = ? AND user_id = ?`
	qDestroyOthers = `DELETE s FROM sessions AS s JOIN sessions AS own ON own.company_id = s.company_id AND own.user_id = s.user_id WHERE own.company_id = ? AND own.id = ? AND s.id <> own.id`
	qPurge         = `DELETE FROM sessions WHERE last_request_at < ?`

	qSelectSection = `SELECT ss.data FROM session_sections AS ss JOIN sessions AS s ON s.id = ss.session_id WHERE s.company_id = ? AND ss.session_id = ? AND ss.name = ?`
	qUpsertSection = `INSERT INTO session_sections (session_id, name, data, updated_at) SELECT id, ?, ?, ? FROM sessions WHERE company_id = ? AND id = ? ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`
	qDeleteSection = `DELETE ss FROM session_sections AS ss JOIN sessions AS s ON s.id = ss.session_id WHERE s.company_id = ? AND ss.session_id = ? AND ss.name = ?`
	qDropSections  = `DELETE FROM session_sections WHERE session_id = ?`
)
