package model

// UploadResult is the outcome of parsing one uploaded contact file, held as
// the "last upload" until an import consumes it or another upload replaces it.
type UploadResult struct {
	TotalParsed     int       `json:"total_parsed"`
	TotalNew        int       `json:"total_new"`
	TotalDuplicates int       `json:"total_duplicates"`
	ParsedContacts  []Contact `json:"parsed_contacts"`
	NewContacts     []Contact `json:"new_contacts"`
	Duplicates      []Contact `json:"duplicates"`
}
