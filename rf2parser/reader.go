package rf2parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/giygas/snomed-normalform/expression"
	"github.com/giygas/snomed-normalform/logging"
	"github.com/giygas/snomed-normalform/terminology"
)

// Description lines can be long, the default scanner limit is not enough
const maxLineSize = 1 * 1024 * 1024

// Relationships of this characteristic type are not defining
const additionalRelationshipTypeID = "900000000000227009"

// parseStats counts why lines of one file were skipped
type parseStats struct {
	file           string
	lines          int
	emptyLines     int
	inactive       int
	missingColumns int
	formatErrors   int
	records        int
}

func (s *parseStats) log() {
	if s.emptyLines > 0 || s.missingColumns > 0 || s.formatErrors > 0 {
		logging.Info(s.file+" skip statistics",
			"empty_lines", s.emptyLines,
			"missing_columns", s.missingColumns,
			"format_errors", s.formatErrors,
			"inactive_rows", s.inactive,
			"total_lines", s.lines,
			"records_parsed", s.records)
	}
	logging.Debug(s.file+" parsed", "records_count", s.records, "inactive_rows", s.inactive)
}

// scanRows calls fn with the columns of every active data row of an RF2 file.
// fn reports false for rows it cannot use.
func scanRows(r io.Reader, file string, columns int, fn func(fields []string) bool) (*parseStats, error) {
	stats := &parseStats{file: file}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0), maxLineSize)

	for scanner.Scan() {
		stats.lines++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if len(line) == 0 {
			stats.emptyLines++
			continue
		}
		// header row
		if stats.lines == 1 && strings.HasPrefix(line, "id\t") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < columns {
			stats.missingColumns++
			continue
		}
		if fields[2] != "1" {
			stats.inactive++
			continue
		}

		if !fn(fields) {
			stats.formatErrors++
			continue
		}
		stats.records++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scanner error in %s: %w", file, err)
	}
	return stats, nil
}

func isIdentifier(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// parseConcepts reads id, effectiveTime, active, moduleId, definitionStatusId
func parseConcepts(r io.Reader, file string) ([]terminology.ConceptRow, *parseStats, error) {
	var rows []terminology.ConceptRow

	stats, err := scanRows(r, file, 5, func(fields []string) bool {
		if !isIdentifier(fields[0]) || !isIdentifier(fields[4]) {
			return false
		}
		rows = append(rows, terminology.ConceptRow{
			ID:                 expression.ConceptID(fields[0]),
			DefinitionStatusID: fields[4],
		})
		return true
	})
	return rows, stats, err
}

// parseDescriptions reads id, effectiveTime, active, moduleId, conceptId, languageCode, typeId, term, caseSignificanceId
func parseDescriptions(r io.Reader, file string) ([]terminology.DescriptionRow, *parseStats, error) {
	var rows []terminology.DescriptionRow

	stats, err := scanRows(r, file, 9, func(fields []string) bool {
		if !isIdentifier(fields[4]) || !isIdentifier(fields[6]) {
			return false
		}
		rows = append(rows, terminology.DescriptionRow{
			ConceptID: expression.ConceptID(fields[4]),
			TypeID:    fields[6],
			Term:      fields[7],
		})
		return true
	})
	return rows, stats, err
}

// parseRelationships reads id, effectiveTime, active, moduleId, sourceId, destinationId,
// relationshipGroup, typeId, characteristicTypeId, modifierId
func parseRelationships(r io.Reader, file string) ([]terminology.RelationshipRow, *parseStats, error) {
	var rows []terminology.RelationshipRow

	stats, err := scanRows(r, file, 10, func(fields []string) bool {
		if !isIdentifier(fields[4]) || !isIdentifier(fields[5]) || !isIdentifier(fields[7]) {
			return false
		}
		group, err := strconv.Atoi(fields[6])
		if err != nil || group < 0 {
			return false
		}
		if fields[8] == additionalRelationshipTypeID {
			return true
		}
		rows = append(rows, terminology.RelationshipRow{
			SourceID:      expression.ConceptID(fields[4]),
			DestinationID: expression.ConceptID(fields[5]),
			Group:         group,
			TypeID:        expression.ConceptID(fields[7]),
		})
		return true
	})
	return rows, stats, err
}
