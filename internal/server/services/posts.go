package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/models"
)

// PostsPerPage is the page size of the posts feed.
const PostsPerPage = 4

var (
	bareYouTubeID   = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	youTubeURLForms = []*regexp.Regexp{
		regexp.MustCompile(`youtube\.com/watch\?(?:.*&)?v=([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
	}
)

// YouTubeID extracts the 11-character video id from a bare id or any of the
// usual YouTube URL forms.
func YouTubeID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if bareYouTubeID.MatchString(s) {
		return s, nil
	}
	for _, re := range youTubeURLForms {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], nil
		}
	}
	return "", common.Invalid("url_media", "not a YouTube video id or URL")
}

// PostPage is one page of the posts feed.
type PostPage struct {
	Posts      []*models.Post
	Page       int
	TotalPages int
	Total      int
}

type PostInput struct {
	Tipo        string
	Titulo      string
	Contenido   string
	URLMedia    string
	LinkExterno string
	Imagen      *Upload
}

// Posts returns a page of posts whose title contains search. Pages start at 1
// and out-of-range pages are clamped.
func (s *ContentService) Posts(ctx context.Context, search string, page int) (*PostPage, error) {
	search = strings.TrimSpace(search)
	repo := s.repomanager.Posts(s.db)

	total, err := repo.Count(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("error counting posts: %w", err)
	}
	pages := max(1, (total+PostsPerPage-1)/PostsPerPage)
	page = min(max(page, 1), pages)

	ps, err := repo.List(ctx, search, PostsPerPage, (page-1)*PostsPerPage)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	if ps == nil {
		ps = []*models.Post{}
	}
	return &PostPage{Posts: ps, Page: page, TotalPages: pages, Total: total}, nil
}

func (s *ContentService) post(ctx context.Context, id string) (*models.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Posts(s.db).GetByID(ctx, id)
}

func (s *ContentService) CreatePost(ctx context.Context, in PostInput) (*models.Post, error) {
	p := &models.Post{}
	newKey, err := s.applyPostInput(ctx, p, in)
	if err != nil {
		return nil, err
	}
	created, err := s.repomanager.Posts(s.db).Create(ctx, p)
	if err != nil {
		s.removePublic(ctx, newKey)
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	return created, nil
}

// UpdatePost replaces a post. An image post without a new upload keeps its
// current image; a replaced or abandoned image is removed from storage.
func (s *ContentService) UpdatePost(ctx context.Context, id string, in PostInput) (*models.Post, error) {
	current, err := s.post(ctx, id)
	if err != nil {
		return nil, err
	}

	p := &models.Post{ID: current.ID}
	if in.Tipo == models.PostTypeImage && in.Imagen == nil {
		p.URLMedia, p.MediaKey = current.URLMedia, current.MediaKey
	}
	newKey, err := s.applyPostInput(ctx, p, in)
	if err != nil {
		return nil, err
	}

	updated, err := s.repomanager.Posts(s.db).Update(ctx, p)
	if err != nil {
		s.removePublic(ctx, newKey)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating post: %w", err)
	}
	if current.MediaKey != "" && current.MediaKey != updated.MediaKey {
		s.removePublic(ctx, current.MediaKey)
	}
	return updated, nil
}

func (s *ContentService) DeletePost(ctx context.Context, id string) error {
	p, err := s.post(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repomanager.Posts(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error deleting post: %w", err)
	}
	s.removePublic(ctx, p.MediaKey)
	return nil
}

// applyPostInput validates in and fills p. It returns the key of a newly
// uploaded image, if any.
func (s *ContentService) applyPostInput(ctx context.Context, p *models.Post, in PostInput) (string, error) {
	p.Titulo = strings.TrimSpace(in.Titulo)
	if p.Titulo == "" {
		return "", common.Invalid("titulo", "required")
	}
	p.Tipo = in.Tipo
	p.Contenido = in.Contenido
	p.LinkExterno = strings.TrimSpace(in.LinkExterno)

	switch in.Tipo {
	case models.PostTypeVideo:
		p.MediaKey = ""
		p.URLMedia = ""
		if strings.TrimSpace(in.URLMedia) != "" {
			id, err := YouTubeID(in.URLMedia)
			if err != nil {
				return "", err
			}
			p.URLMedia = id
		}
	case models.PostTypeImage:
		if in.Imagen == nil {
			return "", nil
		}
		if !strings.HasPrefix(in.Imagen.ContentType, "image/") {
			return "", common.Invalid("imagen", "must be an image")
		}
		key, url, err := s.store.UploadPublic(ctx, "psico/"+in.Imagen.Name, in.Imagen.ContentType, in.Imagen.Body, in.Imagen.Size)
		if err != nil {
			return "", fmt.Errorf("error uploading post image: %w", err)
		}
		p.MediaKey, p.URLMedia = key, url
		return key, nil
	case models.PostTypeText:
		p.MediaKey = ""
		p.URLMedia = ""
	default:
		return "", common.Invalid("tipo", "must be imagen, video or texto")
	}
	return "", nil
}

func (s *ContentService) removePublic(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.RemovePublic(ctx, key); err != nil {
		s.log.Warn(ctx, "failed to remove public object", "key", key, "err", err)
	}
}
