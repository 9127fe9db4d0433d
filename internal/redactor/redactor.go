package redactor

import (
	"regexp"
	"sort"
	"strings"

	"guardian-rag/internal/models"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

// detector is one PII pattern. Detectors run independently against the
// original text; overlapping detections are resolved afterwards by kind
// specificity.
type detector struct {
	kind models.PIIKind
	re   *regexp.Regexp
}

// Redactor scans text for PII and replaces each detection with a
// deterministic token of the form [REDACTED:<kind>]. The replacement is
// one-way: nothing in this package can recover the original text.
//
// Structured identifiers (National Insurance numbers, policy numbers) use
// strict patterns. Names and addresses combine a statistical NER model
// (PERSON and GPE entities) with lexical patterns for honorifics, street
// lines and UK postcodes, so a bare personal name is caught even without
// an honorific.
type Redactor struct {
	detectors []detector
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Redactor {
	return &Redactor{
		detectors: []detector{
			{
				kind: models.PIIKindNationalInsuranceNumber,
				// Two prefix letters, three digit pairs, suffix A-D. The
				// prefix class excludes letters never issued (D, F, I,
				// Q, U, V).
				re: regexp.MustCompile(`\b[A-CEGHJ-PR-TW-Z]{2}[ -]?\d{2}[ -]?\d{2}[ -]?\d{2}[ -]?[A-D]\b`),
			},
			{
				kind: models.PIIKindPolicyNumber,
				re:   regexp.MustCompile(`\b(?:POL|PCY)[- ]?\d{6,10}\b`),
			},
			{
				kind: models.PIIKindEmail,
				re:   regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			},
			{
				kind: models.PIIKindPhone,
				re:   regexp.MustCompile(`(?:\+44\s?\d{4}|\(?0\d{3,4}\)?)[\s-]?\d{3}[\s-]?\d{3,4}\b`),
			},
			{
				kind: models.PIIKindAddress,
				// Numbered street lines and UK postcodes.
				re: regexp.MustCompile(`\b\d{1,4}\s+[A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*\s+(?:Street|Road|Avenue|Lane|Close|Drive|Court|Way|Place|Gardens|Crescent|Terrace)\b|\b[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}\b`),
			},
			{
				kind: models.PIIKindName,
				re:   regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2}\b`),
			},
		},
		logger: logger,
	}
}

// Redact returns the text with every detection replaced by its token, plus
// the detection metadata. Entity spans address the original text, in
// ascending order. The redacted output never contains a flagged span
// verbatim.
func (r *Redactor) Redact(text string) (string, []models.PIIEntity) {
	var candidates []models.PIIEntity
	for _, d := range r.detectors {
		for _, loc := range d.re.FindAllStringIndex(text, -1) {
			candidates = append(candidates, models.PIIEntity{
				Kind:             d.kind,
				Span:             models.CharSpan{Start: loc[0], End: loc[1]},
				ReplacementToken: "[REDACTED:" + string(d.kind) + "]",
			})
		}
	}
	candidates = append(candidates, r.nerCandidates(text)...)

	entities := resolveOverlaps(candidates)
	if len(entities) == 0 {
		return text, nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	cursor := 0
	for _, entity := range entities {
		builder.WriteString(text[cursor:entity.Span.Start])
		builder.WriteString(entity.ReplacementToken)
		cursor = entity.Span.End
	}
	builder.WriteString(text[cursor:])

	r.logger.Debug("PII redacted", zap.Int("entities", len(entities)))

	return builder.String(), entities
}

// nerCandidates runs the statistical entity extractor over the text and
// turns PERSON and GPE detections into name and address candidates. Each
// detected entity string is flagged at every occurrence, since the model
// reports entity text without offsets. Extraction failures degrade to the
// pattern detectors alone rather than failing the query.
func (r *Redactor) nerCandidates(text string) []models.PIIEntity {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		r.logger.Warn("Entity extraction failed, using pattern detectors only", zap.Error(err))
		return nil
	}

	var candidates []models.PIIEntity
	for _, ent := range doc.Entities() {
		var kind models.PIIKind
		switch ent.Label {
		case "PERSON":
			kind = models.PIIKindName
		case "GPE":
			kind = models.PIIKindAddress
		default:
			continue
		}

		offset := 0
		for {
			i := strings.Index(text[offset:], ent.Text)
			if i < 0 {
				break
			}
			start := offset + i
			candidates = append(candidates, models.PIIEntity{
				Kind:             kind,
				Span:             models.CharSpan{Start: start, End: start + len(ent.Text)},
				ReplacementToken: "[REDACTED:" + string(kind) + "]",
			})
			offset = start + len(ent.Text)
		}
	}
	return candidates
}

// resolveOverlaps keeps at most one detection per region of text. The more
// specific kind wins; between equally specific detections the earlier,
// then longer, span wins. The survivors come back in ascending span order.
func resolveOverlaps(candidates []models.PIIEntity) []models.PIIEntity {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]models.PIIEntity, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Kind.Specificity() != b.Kind.Specificity() {
			return a.Kind.Specificity() > b.Kind.Specificity()
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.Span.Len() > b.Span.Len()
	})

	var kept []models.PIIEntity
	for _, candidate := range ranked {
		overlaps := false
		for _, existing := range kept {
			if candidate.Span.Overlap(existing.Span) > 0 {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, candidate)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Span.Start < kept[j].Span.Start
	})
	return kept
}
