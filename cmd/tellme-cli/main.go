// tellme-cli はTellMe APIを操作するコマンドラインクライアント。
//
// 使い方:
//
//	tellme-cli [-server URL] [-data DIR] <command> [args]
//
// コマンド:
//
//	register <name> <email> <password>
//	login <email> <password>
//	logout
//	me
//	feed
//	my-posts
//	post <content> [image-file]
//	like <post-id>
//	comment <post-id> <content>
//	profile <name> <bio>
//	avatar <image-file>
//	avatar-url <image-url>
//	stats
//	friends
//	friend-requests
//	friend-request <user-id>
//	friend-accept <request-id>
//	friend-reject <request-id>
//	friend-remove <user-id>
//	suggestions
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hitoshi/tellme/internal/client/api"
	"github.com/hitoshi/tellme/internal/client/token"
	"github.com/hitoshi/tellme/internal/friend"
)

func main() {
	server := flag.String("server", api.ResolveBaseURL("localhost"), "API base URL")
	dataDir := flag.String("data", defaultDataDir(), "directory for client-local state")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*server, *dataDir, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tellme"
	}
	return filepath.Join(home, ".tellme")
}

func run(server, dataDir string, args []string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tokens, err := token.OpenSQLiteStore(filepath.Join(dataDir, "tokens.db"))
	if err != nil {
		return err
	}
	defer tokens.Close()

	// サーバー不達時の友達操作はローカルエンジンで継続する
	friendStore, err := friend.OpenSQLiteStore(filepath.Join(dataDir, "friends.db"))
	if err != nil {
		return err
	}
	defer friendStore.Close()

	client := api.NewClient(server, tokens, nil)
	client.SetFriendFallback(friend.NewEngine(friendStore))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		if len(rest) != 3 {
			return fmt.Errorf("usage: register <name> <email> <password>")
		}
		resp, err := client.Register(ctx, rest[0], rest[1], rest[2])
		if err != nil {
			return err
		}
		fmt.Printf("registered as %s (%s)\n", resp.User.Name, resp.User.ID)
		return nil

	case "login":
		if len(rest) != 2 {
			return fmt.Errorf("usage: login <email> <password>")
		}
		resp, err := client.Login(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s\n", resp.User.Name)
		return nil

	case "logout":
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "me":
		user, err := client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\n", user.Name, user.Email)
		if user.Bio != "" {
			fmt.Println(user.Bio)
		}
		return nil

	case "feed":
		posts, err := client.Posts(ctx)
		if err != nil {
			return err
		}
		printPosts(posts)
		return nil

	case "my-posts":
		posts, err := client.MyPosts(ctx)
		if err != nil {
			return err
		}
		printPosts(posts)
		return nil

	case "post":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("usage: post <content> [image-file]")
		}
		imageDataURL := ""
		if len(rest) == 2 {
			imageDataURL, err = encodeImageFile(rest[1])
			if err != nil {
				return err
			}
		}
		post, err := client.CreatePost(ctx, rest[0], imageDataURL)
		if err != nil {
			return err
		}
		fmt.Printf("posted %s\n", post.ID)
		return nil

	case "like":
		if len(rest) != 1 {
			return fmt.Errorf("usage: like <post-id>")
		}
		post, err := client.LikePost(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("liked, %d likes total\n", len(post.Likes))
		return nil

	case "comment":
		if len(rest) != 2 {
			return fmt.Errorf("usage: comment <post-id> <content>")
		}
		post, err := client.CommentPost(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Printf("commented, %d comments total\n", len(post.Comments))
		return nil

	case "profile":
		if len(rest) != 2 {
			return fmt.Errorf("usage: profile <name> <bio>")
		}
		user, err := client.UpdateProfile(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Printf("profile updated: %s\n", user.Name)
		return nil

	case "avatar":
		if len(rest) != 1 {
			return fmt.Errorf("usage: avatar <image-file>")
		}
		f, err := os.Open(rest[0])
		if err != nil {
			return err
		}
		defer f.Close()
		resp, err := client.UploadAvatar(ctx, filepath.Base(rest[0]), f)
		if err != nil {
			return err
		}
		fmt.Printf("avatar updated: %s\n", resp.ProfilePicture)
		return nil

	case "avatar-url":
		if len(rest) != 1 {
			return fmt.Errorf("usage: avatar-url <image-url>")
		}
		resp, err := client.UploadAvatarFromURL(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("avatar updated: %s\n", resp.ProfilePicture)
		return nil

	case "stats":
		stats, err := client.MyStats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("posts: %d, likes: %d, comments: %d\n", stats.Posts, stats.Likes, stats.Comments)
		return nil

	case "friends":
		friends, err := client.Friends(ctx)
		if err != nil {
			return err
		}
		if len(friends) == 0 {
			fmt.Println("no friends yet")
			return nil
		}
		for _, f := range friends {
			fmt.Printf("%s\t%s\n", f.User.ID, f.User.Name)
		}
		return nil

	case "friend-requests":
		requests, err := client.FriendRequests(ctx)
		if err != nil {
			return err
		}
		if len(requests) == 0 {
			fmt.Println("no pending requests")
			return nil
		}
		for _, r := range requests {
			fmt.Printf("%s\tfrom %s (%s)\n", r.ID, r.Sender.Name, r.Sender.ID)
		}
		return nil

	case "friend-request":
		if len(rest) != 1 {
			return fmt.Errorf("usage: friend-request <user-id>")
		}
		request, err := client.SendFriendRequest(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("request %s sent\n", request.ID)
		return nil

	case "friend-accept":
		if len(rest) != 1 {
			return fmt.Errorf("usage: friend-accept <request-id>")
		}
		accepted, err := client.AcceptFriendRequest(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("now friends with %s\n", accepted.User.ID)
		return nil

	case "friend-reject":
		if len(rest) != 1 {
			return fmt.Errorf("usage: friend-reject <request-id>")
		}
		if err := client.RejectFriendRequest(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Println("request rejected")
		return nil

	case "friend-remove":
		if len(rest) != 1 {
			return fmt.Errorf("usage: friend-remove <user-id>")
		}
		if err := client.RemoveFriend(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Println("friend removed")
		return nil

	case "suggestions":
		suggestions, err := client.FriendSuggestions(ctx)
		if err != nil {
			return err
		}
		for _, s := range suggestions {
			fmt.Printf("%s\t%s\n", s.ID, s.Name)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printPosts(posts []api.Post) {
	for _, p := range posts {
		fmt.Printf("%s\t%s\t%s\n", p.ID, p.User.Name, p.CreatedAt.Format(time.RFC3339))
		fmt.Printf("  %s\n", p.Content)
		fmt.Printf("  likes: %d, comments: %d\n", len(p.Likes), len(p.Comments))
	}
}

// encodeImageFile は画像ファイルをdata:image形式のインラインデータへ変換する。
// サーバーはdata:image/で始まらないインラインデータを拒否するため、
// 拡張子から画像タイプを導出できないファイルはここでエラーにする。
func encodeImageFile(path string) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unsupported image type: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}
