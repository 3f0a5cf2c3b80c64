package services

import (
	"gorm.io/gorm"

	"github.com/redwood-webops/ins-display/models"
)

// recentPostsLimit is the page size of the bulk read endpoint.
const recentPostsLimit = 3

// PostService assembles stored posts with their carousel children for API
// responses.
type PostService struct {
	db *gorm.DB
}

func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// Top-level selection: display posts carry a caption, carousel children are
// stored with a NULL one.
func (s *PostService) topLevel() *gorm.DB {
	return s.db.
		Where("role = ? AND caption IS NOT NULL", models.RoleTopLevel).
		Order("timestamp DESC, id")
}

// PostAt returns the idx-th most recent top-level post with its children
// attached, or nil when idx is past the end.
func (s *PostService) PostAt(idx int) (*models.AssembledPost, error) {
	var posts []models.Post
	if err := s.topLevel().Offset(idx).Limit(1).Find(&posts).Error; err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}

	children, err := s.childrenOf([]string{posts[0].ID})
	if err != nil {
		return nil, err
	}
	return &models.AssembledPost{
		Post:     posts[0],
		Children: children[posts[0].ID],
	}, nil
}

// RecentPosts returns the three most recent top-level posts with children
// attached. The children of all selected posts are fetched in one query and
// grouped in memory.
func (s *PostService) RecentPosts() ([]models.AssembledPost, error) {
	var posts []models.Post
	if err := s.topLevel().Limit(recentPostsLimit).Find(&posts).Error; err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return []models.AssembledPost{}, nil
	}

	parentIDs := make([]string, len(posts))
	for i, post := range posts {
		parentIDs[i] = post.ID
	}

	childrenByParent, err := s.childrenOf(parentIDs)
	if err != nil {
		return nil, err
	}

	assembled := make([]models.AssembledPost, len(posts))
	for i, post := range posts {
		assembled[i] = models.AssembledPost{
			Post:     post,
			Children: childrenByParent[post.ID],
		}
	}
	return assembled, nil
}

// childrenOf fetches the child posts for all parents in one IN-set join and
// groups them by parent id. Children come back in storage order; no ordinal
// is persisted.
func (s *PostService) childrenOf(parentIDs []string) (map[string][]models.Post, error) {
	type childRow struct {
		models.Post
		ParentID string
	}

	var rows []childRow
	err := s.db.Table("post_children").
		Select("post_children.parent_id, posts.*").
		Joins("JOIN posts ON posts.id = post_children.child_id").
		Where("post_children.parent_id IN ?", parentIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	childrenByParent := make(map[string][]models.Post, len(parentIDs))
	for _, row := range rows {
		childrenByParent[row.ParentID] = append(childrenByParent[row.ParentID], row.Post)
	}
	return childrenByParent, nil
}
