package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/innunfold/hall-feeds/internal/domain"
	"github.com/innunfold/hall-feeds/internal/ledger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		node        string
		token       string
		contract    string
		hallID      string
		hallName    string
		description string
		content     string
		postType    string
		tags        string
		ref         string
	)

	flag.StringVar(&node, "node", envOrDefault("HALLFEED_NODE_URL", ""), "Ledger node URL")
	flag.StringVar(&token, "token", envOrDefault("HALLFEED_API_TOKEN", ""), "API token for transaction submission")
	flag.StringVar(&contract, "contract", envOrDefault("HALLFEED_MASTER_CONTRACT", ""), "Master contract address (hall registry)")
	flag.StringVar(&hallID, "hall", "", "Hall address to post into")
	flag.StringVar(&hallName, "hall-name", "", "Create a hall with this name instead of posting")
	flag.StringVar(&description, "description", "", "Hall description (with -hall-name)")
	flag.StringVar(&content, "content", "", "Post body")
	flag.StringVar(&postType, "type", string(domain.PostTypeText), "Post type: text, thread, echo or guide")
	flag.StringVar(&tags, "tags", "", "Comma-separated post tags")
	flag.StringVar(&ref, "ref", "", "Client reference ID for deduplication (random if omitted)")
	flag.Parse()

	if token == "" {
		return fmt.Errorf("--token is required (or set HALLFEED_API_TOKEN)")
	}
	if ref == "" {
		ref = uuid.NewString()
	}

	ctx := context.Background()
	client := ledger.NewClient(node).WithToken(token)

	if hallName != "" {
		if contract == "" {
			return fmt.Errorf("--contract is required to create a hall (or set HALLFEED_MASTER_CONTRACT)")
		}

		fmt.Printf("Creating hall %q...\n", hallName)
		txHash, err := client.SendTransaction(ctx, contract, "create_hall", []any{hallName, description, ref})
		if err != nil {
			return err
		}
		fmt.Printf("Hall created: %s\n", txHash)
		return nil
	}

	if hallID == "" || content == "" {
		return fmt.Errorf("--hall and --content are required for posting (or use -hall-name to create a hall)")
	}
	if _, ok := parsePostType(postType); !ok {
		return fmt.Errorf("invalid --type %q: must be text, thread, echo or guide", postType)
	}

	var tagList []string
	if tags != "" {
		tagList = strings.Split(tags, ",")
	}

	fmt.Printf("Publishing post to hall %s...\n", hallID)
	txHash, err := client.SendTransaction(ctx, hallID, "create_post", []any{
		hallID, content, postType, tagList, ref,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Post published: %s\n", txHash)

	return nil
}

func parsePostType(s string) (domain.PostType, bool) {
	switch domain.PostType(s) {
	case domain.PostTypeText, domain.PostTypeThread, domain.PostTypeEcho, domain.PostTypeGuide:
		return domain.PostType(s), true
	default:
		return "", false
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
