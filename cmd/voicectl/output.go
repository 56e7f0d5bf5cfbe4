package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/book-expert/voice-client/internal/voiceapi"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	jsonIndent  = "  "
	percentFmt  = "%.0f%%"
)

// Error messages.
const (
	errFmtUnknownFormat = "%w: %q (use table, json or yaml)"
	errFmtEncode        = "failed to encode output as %s: %w"
)

var errUnknownFormat = errors.New("unknown output format")

var (
	profileHeader = []string{"ID", "NAME", "LANGUAGE", "GENDER", "DESCRIPTION"}
	jobHeader     = []string{"JOB", "STATUS", "PROGRESS", "ITEMS"}
)

// writeProfiles renders profiles in the requested format.
func writeProfiles(w io.Writer, format string, list []voiceapi.SpeakerProfile) error {
	rows := make([][]string, len(list))
	for i, profile := range list {
		rows[i] = []string{profile.ID, profile.Name, profile.Language, profile.Gender, profile.Description}
	}

	return writeOutput(w, format, profileHeader, rows, list)
}

// writeJobs renders batch jobs in the requested format.
func writeJobs(w io.Writer, format string, jobs []voiceapi.BatchJob) error {
	rows := make([][]string, len(jobs))
	for i, job := range jobs {
		rows[i] = []string{job.JobID, job.Status, fmt.Sprintf(percentFmt, job.Progress*100), strconv.Itoa(len(job.Results))}
	}

	return writeOutput(w, format, jobHeader, rows, jobs)
}

// writeOutput prints rows as a table, or value as JSON or YAML.
func writeOutput(w io.Writer, format string, header []string, rows [][]string, value any) error {
	switch format {
	case formatTable:
		table := tablewriter.NewWriter(w)
		table.SetHeader(header)
		table.SetAutoWrapText(false)
		table.AppendBulk(rows)
		table.Render()

		return nil
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", jsonIndent)

		err := encoder.Encode(value)
		if err != nil {
			return fmt.Errorf(errFmtEncode, format, err)
		}

		return nil
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(len(jsonIndent))

		err := encoder.Encode(value)
		if err != nil {
			return fmt.Errorf(errFmtEncode, format, err)
		}

		err = encoder.Close()
		if err != nil {
			return fmt.Errorf(errFmtEncode, format, err)
		}

		return nil
	default:
		return fmt.Errorf(errFmtUnknownFormat, errUnknownFormat, format)
	}
}
