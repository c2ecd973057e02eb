package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// columns 为输入文件的固定列顺序。
const columns = 6

// RenameRequest 对应输入文件中的一行改名任务。
type RenameRequest struct {
	Unit        string `json:"unit"`
	OldName     string `json:"old_name"`
	Enabled     string `json:"enabled"`
	MachineName string `json:"machine"`
	UserName    string `json:"user_name"`
	NewName     string `json:"new_name"`
	// Line 为该行在文件中的物理行号（表头为第 1 行）。
	Line int `json:"line"`
}

// Count 表示要处理的记录数，All 表示处理剩余全部记录。
type Count int

// All 表示处理起始行之后的所有记录。
const All Count = -1

// ParseCount 解析正整数或 "all"。
func ParseCount(s string) (Count, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return All, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("count must be a positive integer or 'all', got %q", s)
	}
	return Count(n), nil
}

func (c Count) String() string {
	if c == All {
		return "all"
	}
	return strconv.Itoa(int(c))
}

// UnmarshalYAML 支持 `count: 10` 与 `count: all` 两种写法。
func (c *Count) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseCount(node.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ReadError 表示输入文件无法读取或某行无法解析，整个批次因此中止。
type ReadError struct {
	Path string
	Line int
	Err  error
}

func (e *ReadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("read %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Read 从 path 读取改名任务。from 从 1 开始且不计表头，count 为条数或 All。
func Read(path string, from int, count Count) ([]RenameRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()
	return Decode(f, path, from, count)
}

// Decode 与 Read 相同，但从任意 reader 读取，name 仅用于错误信息。
func Decode(r io.Reader, name string, from int, count Count) ([]RenameRequest, error) {
	if from < 1 {
		return nil, &ReadError{Path: name, Err: fmt.Errorf("from must be >= 1, got %d", from)}
	}
	if count != All && count <= 0 {
		return nil, &ReadError{Path: name, Err: fmt.Errorf("invalid count %d", count)}
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out []RenameRequest
	// 表头不计入 from
	row := -1
	for {
		if count != All && len(out) >= int(count) {
			break
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &ReadError{Path: name, Line: pe.Line, Err: pe.Err}
			}
			return nil, &ReadError{Path: name, Err: err}
		}
		line, _ := reader.FieldPos(0)
		row++
		if row < from {
			continue
		}
		if len(fields) != columns {
			return nil, &ReadError{Path: name, Line: line, Err: fmt.Errorf("expected %d columns, got %d", columns, len(fields))}
		}
		out = append(out, RenameRequest{
			Unit:        strings.TrimSpace(fields[0]),
			OldName:     strings.TrimSpace(fields[1]),
			Enabled:     strings.TrimSpace(fields[2]),
			MachineName: strings.TrimSpace(fields[3]),
			UserName:    strings.TrimSpace(fields[4]),
			NewName:     strings.TrimSpace(fields[5]),
			Line:        line,
		})
	}
	return out, nil
}
