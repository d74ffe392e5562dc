// Package docvalidate checks that the uploaded document is the kind the
// caller claimed, using keyword and number-pattern heuristics over the OCR
// text. It runs entirely on extracted text; image analysis stays behind the
// detector boundary.
package docvalidate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DocumentType enumerates the supported identity documents.
type DocumentType string

const (
	TypeAadhaar        DocumentType = "aadhaar"
	TypePAN            DocumentType = "pan"
	TypeVoterID        DocumentType = "voter_id"
	TypeDrivingLicense DocumentType = "driving_license"
	TypePassport       DocumentType = "passport"
	TypeNationalID     DocumentType = "national_id"
	TypeUnknown        DocumentType = "unknown"
)

type profile struct {
	numberPattern *regexp.Regexp
	keywords      []string
	requiresPhoto bool
	description   string
}

var profiles = map[DocumentType]profile{
	TypeAadhaar: {
		numberPattern: regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`),
		keywords:      []string{"aadhaar", "aadhar", "uid", "uidai"},
		requiresPhoto: true,
		description:   "Aadhaar card with 12-digit number",
	},
	TypePAN: {
		numberPattern: regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`),
		keywords:      []string{"pan", "permanent account", "income tax"},
		requiresPhoto: false,
		description:   "PAN card with 10-character number",
	},
	TypeVoterID: {
		numberPattern: regexp.MustCompile(`\b[A-Z]{3}\d{7}\b`),
		keywords:      []string{"voter", "election", "electors"},
		requiresPhoto: true,
		description:   "Voter ID with 3 letters + 7 digits",
	},
	TypeDrivingLicense: {
		numberPattern: regexp.MustCompile(`\b[A-Z]{2}\d{13}\b`),
		keywords:      []string{"driving", "license", "licence", "transport"},
		requiresPhoto: true,
		description:   "Driving license with state code + 13 digits",
	},
	TypePassport: {
		numberPattern: regexp.MustCompile(`\b[A-Z]\d{7}\b`),
		keywords:      []string{"passport", "republic of india", "surname"},
		requiresPhoto: true,
		description:   "Passport with 1 letter + 7 digits",
	},
}

// national_id accepts any of the photo-bearing national documents.
var typeAliases = map[DocumentType][]DocumentType{
	TypeNationalID:     {TypeAadhaar, TypeVoterID, TypeDrivingLicense},
	TypeAadhaar:        {TypeAadhaar},
	TypePAN:            {TypePAN},
	TypeVoterID:        {TypeVoterID},
	TypeDrivingLicense: {TypeDrivingLicense},
	TypePassport:       {TypePassport},
}

// Result reports the outcome of validating the uploaded document.
type Result struct {
	Valid        bool         `json:"is_valid"`
	Detected     DocumentType `json:"document_type"`
	Expected     DocumentType `json:"expected_type,omitempty"`
	TypeMismatch bool         `json:"type_mismatch"`
	Issues       []string     `json:"issues"`
}

// DetectType guesses the document type from OCR text, scoring keyword hits
// double against a number-pattern match and taking the highest scorer.
func DetectType(ocrText string) DocumentType {
	lower := strings.ToLower(ocrText)

	type candidate struct {
		docType DocumentType
		score   int
	}
	var candidates []candidate
	for docType, p := range profiles {
		keywordHits := 0
		for _, keyword := range p.keywords {
			if strings.Contains(lower, keyword) {
				keywordHits++
			}
		}
		numberHit := p.numberPattern.MatchString(ocrText)
		if keywordHits > 0 || numberHit {
			score := keywordHits * 2
			if numberHit {
				score++
			}
			candidates = append(candidates, candidate{docType, score})
		}
	}
	if len(candidates) == 0 {
		return TypeUnknown
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].docType < candidates[j].docType
	})
	return candidates[0].docType
}

// Validate checks the OCR text against the expected document type. A detected
// type outside the expected set is a mismatch; otherwise the detected type's
// own requirements (number pattern, photo) are enforced.
func Validate(ocrText string, expected DocumentType, faceDetected bool) Result {
	detected := DetectType(ocrText)

	if expected != "" {
		accepted, ok := typeAliases[expected]
		if !ok {
			accepted = []DocumentType{expected}
		}
		if detected == TypeUnknown {
			return Result{
				Valid:        false,
				Detected:     TypeUnknown,
				Expected:     expected,
				TypeMismatch: true,
				Issues:       []string{fmt.Sprintf("could not identify document type, expected %s", expected)},
			}
		}
		matched := false
		for _, t := range accepted {
			if detected == t {
				matched = true
				break
			}
		}
		if !matched {
			return Result{
				Valid:        false,
				Detected:     detected,
				Expected:     expected,
				TypeMismatch: true,
				Issues: []string{fmt.Sprintf("wrong document type: detected %s, expected %s",
					profiles[detected].description, expected)},
			}
		}
	}

	if detected == TypeUnknown {
		return Result{
			Valid:    false,
			Detected: TypeUnknown,
			Issues:   []string{"could not identify document type"},
		}
	}

	p := profiles[detected]
	var issues []string
	if !p.numberPattern.MatchString(ocrText) {
		issues = append(issues, fmt.Sprintf("%s must contain a valid identification number", p.description))
	}
	if p.requiresPhoto && !faceDetected {
		issues = append(issues, fmt.Sprintf("%s must contain a clear photo with a detectable face", p.description))
	}

	return Result{
		Valid:    len(issues) == 0,
		Detected: detected,
		Expected: expected,
		Issues:   issues,
	}
}
