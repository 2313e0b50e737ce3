package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaswdr/faker"
	"github.com/spf13/cobra"

	"lostfound/pkg/backend"
	. "lostfound/pkg/common"
	"lostfound/pkg/composer"
	"lostfound/pkg/item"
	"lostfound/pkg/logger"
	"lostfound/pkg/media"
	"lostfound/pkg/user"
)

const seedPassword = "sdfsdfsdf"

var (
	f             = faker.New()
	onePassForAll = HashPass(seedPassword, RandStringRunes(8)) // salt must have len of 8

	categories = []string{"wallet", "keys", "phone", "umbrella", "backpack", "headphones", "student card", "water bottle"}
	colors     = []string{"black", "white", "red", "blue", "green", "yellow", "grey", "brown"}
	locations  = []string{"library", "cafeteria", "gym", "main hall", "parking lot", "bus stop", "lab 3", "lecture room 101"}
)

type IUserRepo interface {
	Add(context.Context, *user.User) (string, error)
	GetAll(context.Context) ([]*user.User, error)
}

type ICommenter interface {
	AddComment(ctx context.Context, postId item.PostId, author, text string) (*item.Comment, error)
}

func newSeedCmd(envFile *string) *cobra.Command {
	var (
		count  int
		images string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the stores with fake users, items and comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			log := logger.Run(cfg.LogLevel)
			defer log.Sync()

			ctx := cmd.Context()
			b, err := backend.Open(ctx, cfg, media.ReadFileURI)
			if err != nil {
				return err
			}
			defer b.Close(context.Background())

			pics, err := listImages(images)
			if err != nil {
				return err
			}
			authors, err := seedUsers(ctx, b.Users)
			if err != nil {
				return err
			}
			n, err := seedItems(ctx, composer.New(b.Uploader, b.Writer), b.Threads, authors, pics, count)
			log.Infof("seed: %d users, %d items added", len(authors), n)
			return err
		},
	}
	cmd.Flags().IntVarP(&count, "items", "n", 6, "number of items to add")
	cmd.Flags().StringVar(&images, "images", "", "directory with .jpg/.png files to attach at random")
	return cmd
}

// seedUsers creates the demo users when the store has none and returns the
// authors to post as.
func seedUsers(ctx context.Context, userRepo IUserRepo) ([]*user.User, error) {
	authors, err := userRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed: can't get all authors: %w", err)
	}
	if len(authors) > 0 {
		return authors, nil
	}

	// User for experiments (not random)
	emails := []string{"pike@example.com"}
	for i := 1; i <= 5; i++ {
		emails = append(emails, genEmail(i))
	}
	for _, email := range emails {
		u := &user.User{Email: email, Password: onePassForAll}
		id, err := userRepo.Add(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("seed: can't add user %s: %w", email, err)
		}
		u.Id = id
		authors = append(authors, u)
	}
	return authors, nil
}

// seedItems posts count items through the composer, the same path the API
// uses, and leaves a few comments under each.
func seedItems(ctx context.Context, c *composer.Composer, comments ICommenter, authors []*user.User, pics []string, count int) (int, error) {
	added := 0
	for i := 0; i < count; i++ {
		c.SetFields(genFields())
		if len(pics) > 0 && rand.Intn(3) > 0 {
			if err := c.SelectImage(ctx, media.FilePicker{Path: pics[rand.Intn(len(pics))]}); err != nil {
				return added, fmt.Errorf("seed: can't pick image: %w", err)
			}
		} else {
			c.ClearImage()
		}

		postId, err := c.Submit(ctx, randUser(authors).Email)
		if err != nil {
			return added, fmt.Errorf("seed: can't add item: %w", err)
		}
		added++

		for j := rand.Intn(4); j > 0; j-- {
			if _, err := comments.AddComment(ctx, postId, randUser(authors).Email, genComment()); err != nil {
				return added, fmt.Errorf("seed: can't comment on %s: %w", postId, err)
			}
		}
	}
	return added, nil
}

func listImages(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("seed: can't read images dir: %w", err)
	}
	pics := []string{}
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			pics = append(pics, filepath.Join(dir, e.Name()))
		}
	}
	return pics, nil
}

func genEmail(id int) string {
	// the index keeps emails unique between runs of the generator
	return fmt.Sprintf("%s%d@example.com", strings.ToLower(f.Person().FirstName()), id)
}

func genFields() item.Fields {
	category := f.RandomStringElement(categories)
	return item.Fields{
		Text:     fmt.Sprintf("%s %s", strings.Join(f.Lorem().Words(rand.Intn(4)+2), " "), category),
		Location: f.RandomStringElement(locations),
		Color:    f.RandomStringElement(colors),
		Category: category,
	}
}

func genComment() string {
	return strings.Join(f.Lorem().Words(rand.Intn(8)+3), " ")
}

func randUser(users []*user.User) *user.User {
	idx := rand.Intn(len(users))
	return users[idx]
}
