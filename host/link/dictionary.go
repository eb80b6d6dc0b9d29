package link

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Message is one dictionary entry.
type Message struct {
	ID       uint16
	Name     string
	Format   string
	Response bool
}

// Dictionary maps message names to the ids a device assigned them.
type Dictionary struct {
	Version  string
	Messages []Message

	byName map[string]int
	byID   map[uint16]int
}

// ParseDictionary reads the text served by identify.
func ParseDictionary(data []byte) (*Dictionary, error) {
	d := &Dictionary{byName: make(map[string]int), byID: make(map[uint16]int)}
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.SplitN(text, " ", 4)
		if fields[0] == "version" {
			if len(fields) < 2 {
				return nil, fmt.Errorf("dictionary line %d: missing version", line)
			}
			d.Version = fields[1]
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("dictionary line %d: %q", line, text)
		}
		id, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("dictionary line %d: bad id: %w", line, err)
		}
		m := Message{ID: uint16(id), Name: fields[2]}
		switch fields[1] {
		case "command":
		case "response":
			m.Response = true
		default:
			return nil, fmt.Errorf("dictionary line %d: unknown kind %q", line, fields[1])
		}
		if len(fields) == 4 {
			m.Format = fields[3]
		}
		if _, dup := d.byName[m.Name]; dup {
			return nil, fmt.Errorf("dictionary line %d: %s listed twice", line, m.Name)
		}
		d.byName[m.Name] = len(d.Messages)
		d.byID[m.ID] = len(d.Messages)
		d.Messages = append(d.Messages, m)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if d.Version == "" {
		return nil, fmt.Errorf("dictionary: no version line")
	}
	return d, nil
}

// Lookup returns the entry for name.
func (d *Dictionary) Lookup(name string) (Message, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Message{}, false
	}
	return d.Messages[i], true
}

// Name returns the name registered for id.
func (d *Dictionary) Name(id uint16) string {
	if i, ok := d.byID[id]; ok {
		return d.Messages[i].Name
	}
	return "#" + strconv.Itoa(int(id))
}
