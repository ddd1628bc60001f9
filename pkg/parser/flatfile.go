// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package parser

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/kraklabs/bdp-ingest/internal/ingesterr"
	"github.com/kraklabs/bdp-ingest/pkg/hashutil"
)

// FlatFileParser parses the line-delimited record format shared by
// UniProt's .dat flat files and NCBI's GenBank/RefSeq flat files: one
// record per "//"-terminated block, with recognized two-letter field
// tags at the start of each line (UniProt: ID/AC/DE/..., GenBank:
// LOCUS/ACCESSION/DEFINITION/...).
type FlatFileParser struct {
	// RecordType is stamped onto every GenericRecord this parser
	// produces ("uniprot_entry", "genbank_entry", ...).
	RecordType string
	// IdentifierTag is the line tag whose first field is the record's
	// external identifier ("ID" for UniProt, "LOCUS" for GenBank).
	IdentifierTag string
	// NameTag is the line tag carrying the human-readable name/title,
	// if any ("DE" for UniProt, "DEFINITION" for GenBank).
	NameTag string
}

var _ Parser = (*FlatFileParser)(nil)

// recordSeparator marks the end of a record in both UniProt and
// GenBank flat files.
const recordSeparator = "//"

// CountRecords implements Parser by scanning for recordSeparator
// lines.
func (p *FlatFileParser) CountRecords(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, ingesterr.Transportf(err, "open %s", path)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if strings.TrimRight(scanner.Text(), " \t") == recordSeparator {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, ingesterr.Parsef(err, "count records in %s", path)
	}
	return count, nil
}

// ParseRange implements Parser by scanning sequentially from the
// start of the file (flat files are not random-access seekable at a
// record boundary without an index) and emitting every record whose
// ordinal position falls in [startOffset, endOffset). startOffset and
// endOffset here are record ordinals, not byte offsets — the
// coordinator's splitting logic treats this parser's unit of division
// as "records", matching CountRecords' return value.
func (p *FlatFileParser) ParseRange(ctx context.Context, path string, startOffset, endOffset int64) ([]GenericRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ingesterr.Transportf(err, "open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []GenericRecord
	var current []string
	var ordinal int64

	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		if ordinal >= startOffset && ordinal < endOffset {
			rec, err := p.buildRecord(current, path, ordinal)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		ordinal++
		current = current[:0]
		return nil
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ordinal >= endOffset {
			break
		}
		line := scanner.Text()
		if strings.TrimRight(line, " \t") == recordSeparator {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, ingesterr.Parsef(err, "parse range in %s", path)
	}
	if ordinal < endOffset {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	return records, nil
}

func (p *FlatFileParser) buildRecord(lines []string, path string, ordinal int64) (GenericRecord, error) {
	identifier := ""
	name := ""
	fields := map[string][]string{}

	for _, line := range lines {
		tag, rest := splitTag(line)
		if tag == "" {
			continue
		}
		fields[tag] = append(fields[tag], rest)
		if tag == p.IdentifierTag && identifier == "" {
			identifier = firstField(rest)
		}
		if tag == p.NameTag && name == "" {
			name = rest
		}
	}

	if identifier == "" {
		return GenericRecord{}, ingesterr.Parsef(nil, "record at ordinal %d in %s has no %s tag", ordinal, path, p.IdentifierTag)
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return GenericRecord{}, ingesterr.Parsef(err, "marshal record %s", identifier)
	}

	body := strings.Join(lines, "\n")
	return GenericRecord{
		RecordType:       p.RecordType,
		RecordIdentifier: identifier,
		RecordName:       name,
		RecordData:       payload,
		ContentMD5:       hashutil.MD5Bytes([]byte(body)),
		SourceFile:       path,
		SourceOffset:     ordinal,
	}, nil
}

// splitTag splits a fixed-width flat-file line into its leading tag
// and the remainder, tolerating both UniProt's 2-char-tag-plus-3-space
// layout and GenBank's left-justified keyword layout.
func splitTag(line string) (tag, rest string) {
	if line == "" {
		return "", ""
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	tag = fields[0]
	rest = strings.TrimSpace(strings.TrimPrefix(line, tag))
	return tag, rest
}

func firstField(s string) string {
	fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSuffix(fields[0], ";")
}
