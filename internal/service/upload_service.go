package service

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"smsbridge-backend/internal/contacts"
	"smsbridge-backend/internal/model"
	"smsbridge-backend/internal/repository"
)

type UploadService struct {
	Repo    repository.ContactRepository
	MaxSize int64
}

func NewUploadService(repo repository.ContactRepository, maxSize int64) *UploadService {
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &UploadService{Repo: repo, MaxSize: maxSize}
}

// Parse validates an uploaded file, extracts contacts from it and partitions
// them into new and duplicate against the stored set.
func (s *UploadService) Parse(filename string, size int64, content []byte) (*model.UploadResult, error) {
	if filename == "" {
		return nil, errors.New("no file selected")
	}
	if size == 0 || len(content) == 0 {
		return nil, errors.New("empty files cannot be uploaded")
	}
	if size > s.MaxSize {
		return nil, fmt.Errorf("file size may not exceed %dMB", s.MaxSize/(1024*1024))
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".csv" {
		return nil, errors.New("only CSV files can be uploaded")
	}

	parsed, err := contacts.ParseCSV(content)
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, errors.New("no valid contacts found, check the file format")
	}

	existing, err := s.Repo.List()
	if err != nil {
		return nil, fmt.Errorf("loading stored contacts: %w", err)
	}

	fresh, dups := contacts.Partition(parsed, existing)
	return &model.UploadResult{
		TotalParsed:     len(parsed),
		TotalNew:        len(fresh),
		TotalDuplicates: len(dups),
		ParsedContacts:  parsed,
		NewContacts:     fresh,
		Duplicates:      dups,
	}, nil
}
