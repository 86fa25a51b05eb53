package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"care-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Read-only dump of the chat store, one table per key family. Useful when a
// conversation looks wrong and the question is "what is actually on disk".
func main() {
	dbPath := flag.String("db", "/tmp/care-chat/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, user:, unread:, conv:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	switch {
	case strings.HasPrefix(*prefix, "msg:"):
		table.SetHeader([]string{"Key", "Sender", "Receiver", "Type", "Read", "Created", "Content"})
	case strings.HasPrefix(*prefix, "user:"):
		table.SetHeader([]string{"Key", "Fullname", "Email", "Role", "Doctor", "Patients"})
	default:
		table.SetHeader([]string{"Key", "Value"})
	}
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				switch {
				case strings.HasPrefix(rawKey, "msg:"):
					var m repositories.DiskMessage
					if err := json.Unmarshal(v, &m); err != nil {
						// Log and keep scanning instead of aborting the dump
						fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
						return nil
					}
					table.Append([]string{
						rawKey,
						shortID(m.SenderID),
						shortID(m.ReceiverID),
						m.Type,
						fmt.Sprintf("%t", m.IsRead),
						m.CreatedAt.Format("15:04:05"),
						truncate(m.Content, 40),
					})
				case strings.HasPrefix(rawKey, "user:"):
					var u repositories.User
					if err := json.Unmarshal(v, &u); err != nil {
						fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
						return nil
					}
					table.Append([]string{
						rawKey,
						u.FullName,
						u.Email,
						u.Role,
						shortID(u.DoctorID),
						fmt.Sprintf("%d", len(u.PatientIDs)),
					})
				default:
					// unread: and conv: values are plain key references
					table.Append([]string{rawKey, string(v)})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
