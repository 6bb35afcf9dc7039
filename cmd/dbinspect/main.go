package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/linkstashapp/linkstash-sync/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/LinkStash/data/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Local Replica Inspection ===")
	fmt.Println()

	linkCount := countPrefix(db, "link:")
	tagCount := countPrefix(db, "tag:")
	linkTagCount := countPrefix(db, "lt:")

	fmt.Println("=== Sync Queue ===")
	queueCount := 0
	unsyncedErrors := 0

	err = db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte("queue:")
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek([]byte("queue:")); it.ValidForPrefix([]byte("queue:")); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var item domain.SyncQueueItem
				if err := json.Unmarshal(val, &item); err != nil {
					return err
				}

				queueCount++
				if item.Attempts > 0 {
					unsyncedErrors++
				}

				// Show the first few pending items in replay order
				if queueCount <= 10 {
					fmt.Printf("[%s] %s %s\n", item.EntityType, item.OperationType, item.EntityID)
					fmt.Printf("  Enqueued: %s\n", item.Timestamp.Format("2006-01-02 15:04:05"))
					if item.Attempts > 0 {
						fmt.Printf("  Attempts: %d\n", item.Attempts)
						fmt.Printf("  Last error: %s\n", item.Error)
					}
					fmt.Println()
				}
				return nil
			})
			if err != nil {
				log.Printf("Error reading queue item: %v", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	if queueCount > 10 {
		fmt.Printf("... and %d more pending items\n\n", queueCount-10)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Links: %d\n", linkCount)
	fmt.Printf("Tags: %d\n", tagCount)
	fmt.Printf("Link-tag associations: %d\n", linkTagCount)
	fmt.Printf("Pending queue items: %d\n", queueCount)
	fmt.Printf("Items with failed attempts: %d\n", unsyncedErrors)
}

// countPrefix counts entity records under a key prefix, skipping index keys.
func countPrefix(db *badger.DB, prefix string) int {
	count := 0
	_ = db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(prefix)
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, prefix)
			if strings.HasPrefix(rest, "idx:") || strings.HasPrefix(rest, "uidx:") {
				continue
			}
			count++
		}
		return nil
	})
	return count
}
