package repository

import (
	"database/sql"
	"errors"

	"smsbridge-backend/internal/model"
)

// PostgresContactRepository stores contacts in Postgres.
type PostgresContactRepository struct {
	DB *sql.DB
}

func NewPostgresContactRepository(db *sql.DB) *PostgresContactRepository {
	return &PostgresContactRepository{DB: db}
}

func (r *PostgresContactRepository) List() ([]model.Contact, error) {
	query := `
		SELECT id, name, phone, source, created_at
		FROM contacts
		ORDER BY created_at DESC`

	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		var c model.Contact
		var source sql.NullString

		err := rows.Scan(&c.ID, &c.Name, &c.Phone, &source, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		if source.Valid {
			c.Source = source.String
		}
		contacts = append(contacts, c)
	}

	return contacts, rows.Err()
}

func (r *PostgresContactRepository) Create(contact model.Contact) (model.Contact, error) {
	query := `
		INSERT INTO contacts (name, phone, source)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.DB.QueryRow(
		query,
		contact.Name,
		contact.Phone,
		nullable(contact.Source),
	).Scan(&contact.ID, &contact.CreatedAt)

	if err != nil {
		return model.Contact{}, err
	}

	return contact, nil
}

func (r *PostgresContactRepository) Delete(id string) error {
	query := `DELETE FROM contacts WHERE id = $1`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *PostgresContactRepository) Import(toImport []model.Contact) (int, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `INSERT INTO contacts (name, phone, source) VALUES ($1, $2, $3)`
	count := 0
	for _, c := range toImport {
		if _, err := tx.Exec(query, c.Name, c.Phone, nullable(c.Source)); err != nil {
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// GetByID looks up one contact; a missing row returns (nil, nil).
func (r *PostgresContactRepository) GetByID(id string) (*model.Contact, error) {
	var c model.Contact
	var source sql.NullString

	query := `
		SELECT id, name, phone, source, created_at
		FROM contacts
		WHERE id = $1`

	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.Name, &c.Phone, &source, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if source.Valid {
		c.Source = source.String
	}

	return &c, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
