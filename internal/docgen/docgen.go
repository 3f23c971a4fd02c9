// Package docgen renders per-application documents (resumes, cover letters)
// from text templates and hands back references to the generated artifacts.
package docgen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// DocType selects which document a template produces.
type DocType string

const (
	DocResume      DocType = "resume"
	DocCoverLetter DocType = "cover_letter"
)

// ParseDocType converts a raw string to a DocType, returning an error for
// unknown values.
func ParseDocType(s string) (DocType, error) {
	dt := DocType(s)
	switch dt {
	case DocResume, DocCoverLetter:
		return dt, nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// ArtifactRef points at a generated document on disk.
type ArtifactRef struct {
	ID         string    `json:"id"`
	DocType    DocType   `json:"doc_type"`
	TemplateID string    `json:"template_id"`
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
}

// Renderer produces an application document for a posting and profile.
type Renderer interface {
	Render(ctx context.Context, posting *types.JobPosting, profile *types.CandidateProfile, docType DocType, templateID string) (*ArtifactRef, error)
}

// templateData is the payload templates execute against.
type templateData struct {
	Title       string
	Company     string
	Location    string
	Skills      []string
	TargetRoles []string
	Generated   string
}

// TemplateRenderer renders documents from text/template files in a template
// directory. Template files are named <templateID>.tmpl.
type TemplateRenderer struct {
	templateDir string
	outputDir   string
}

func NewTemplateRenderer(templateDir, outputDir string) *TemplateRenderer {
	return &TemplateRenderer{templateDir: templateDir, outputDir: outputDir}
}

func (r *TemplateRenderer) Render(ctx context.Context, posting *types.JobPosting, profile *types.CandidateProfile, docType DocType, templateID string) (*ArtifactRef, error) {
	tmpl, err := r.parseTemplate(templateID)
	if err != nil {
		return nil, err
	}

	data := templateData{
		Title:       posting.Title,
		Company:     posting.Company,
		Location:    posting.Location,
		Skills:      profile.SkillNames(),
		TargetRoles: profile.TargetRoles,
		Generated:   time.Now().UTC().Format("2006-01-02"),
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return nil, &RenderError{Message: "execute template " + templateID, Cause: err}
	}

	ref := &ArtifactRef{
		ID:         uuid.New().String(),
		DocType:    docType,
		TemplateID: templateID,
		CreatedAt:  time.Now().UTC(),
	}
	sum := sha256.Sum256([]byte(out.String()))
	ref.Checksum = hex.EncodeToString(sum[:])

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, &RenderError{Message: "create output directory", Cause: err}
	}
	ref.Path = filepath.Join(r.outputDir, fmt.Sprintf("%s-%s.txt", docType, ref.ID))
	if err := os.WriteFile(ref.Path, []byte(out.String()), 0o644); err != nil {
		return nil, &RenderError{Message: "write artifact", Cause: err}
	}
	return ref, nil
}

func (r *TemplateRenderer) parseTemplate(templateID string) (*template.Template, error) {
	path := filepath.Join(r.templateDir, templateID+".tmpl")
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &TemplateNotFoundError{TemplateID: templateID}
		}
		return nil, &RenderError{Message: "read template " + templateID, Cause: err}
	}
	tmpl, err := template.New(templateID).Parse(string(content))
	if err != nil {
		return nil, &RenderError{Message: "parse template " + templateID, Cause: err}
	}
	return tmpl, nil
}
