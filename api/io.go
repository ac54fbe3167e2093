package api

import (
    "bufio"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
)

type ProcessFunc func(json.RawMessage) error

// ProcessJsonStream feeds process every value in the request body. The body is
// either one JSON array, whose elements are processed in order, or a sequence
// of whitespace separated JSON values.
func ProcessJsonStream(r *http.Request, process ProcessFunc) error {
    defer r.Body.Close()
    reader := bufio.NewReader(r.Body)

    first, err := peekNonSpace(reader)
    if err != nil {
        return fmt.Errorf("error reading first byte: %w", err)
    }

    switch first {
    case '[':
        return processJsonArray(reader, process)
    default:
        return processJsonValues(reader, process)
    }
}

func peekNonSpace(reader *bufio.Reader) (byte, error) {
    for {
        b, err := reader.ReadByte()
        if err != nil {
            return 0, err
        }
        switch b {
        case ' ', '\t', '\r', '\n':
            continue
        }
        return b, reader.UnreadByte()
    }
}

func processJsonArray(reader io.Reader, process ProcessFunc) error {
    decoder := json.NewDecoder(reader)

    tok, err := decoder.Token()
    if err != nil {
        return fmt.Errorf("error reading opening token: %w", err)
    }
    if delim, ok := tok.(json.Delim); !ok || delim != '[' {
        return fmt.Errorf("expected opening [")
    }

    for decoder.More() {
        var item json.RawMessage
        if err := decoder.Decode(&item); err != nil {
            return fmt.Errorf("error decoding array item: %w", err)
        }

        if err := process(item); err != nil {
            return fmt.Errorf("error processing item: %w", err)
        }
    }

    tok, err = decoder.Token()
    if err != nil {
        return fmt.Errorf("error reading closing token: %w", err)
    }
    if delim, ok := tok.(json.Delim); !ok || delim != ']' {
        return fmt.Errorf("expected closing ]")
    }

    return nil
}

func processJsonValues(reader io.Reader, process ProcessFunc) error {
    decoder := json.NewDecoder(reader)

    for {
        var item json.RawMessage
        if err := decoder.Decode(&item); err != nil {
            if err == io.EOF {
                break
            }
            return fmt.Errorf("error decoding JSON value: %w", err)
        }

        if err := process(item); err != nil {
            return fmt.Errorf("error processing item: %w", err)
        }
    }

    return nil
}
