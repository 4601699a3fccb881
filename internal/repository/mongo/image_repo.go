package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/prn-tf/imagevault/internal/domain"
	"github.com/prn-tf/imagevault/internal/repository"
)

// imageDoc is the stored shape of an image record. Mapping between the
// dynamic document and domain.Image happens only here, at the store
// boundary.
type imageDoc struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Name         string        `bson:"name"`
	Description  string        `bson:"description"`
	Filename     string        `bson:"filename"`
	ThumbnailURL string        `bson:"thumbnail_url"`
	HDURL        string        `bson:"hd_url"`
	FileSize     int64         `bson:"file_size"`
	ContentType  string        `bson:"content_type"`
	Downloads    int64         `bson:"downloads"`
	Tags         []string      `bson:"tags"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    *time.Time    `bson:"updated_at,omitempty"`
	IsFeatured   bool          `bson:"is_featured"`
}

func (d *imageDoc) toDomain() *domain.Image {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &domain.Image{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Description:  d.Description,
		Filename:     d.Filename,
		ThumbnailURL: d.ThumbnailURL,
		HDURL:        d.HDURL,
		FileSize:     d.FileSize,
		ContentType:  d.ContentType,
		Downloads:    d.Downloads,
		Tags:         tags,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		IsFeatured:   d.IsFeatured,
	}
}

func fromDomain(img *domain.Image) *imageDoc {
	return &imageDoc{
		Name:         img.Name,
		Description:  img.Description,
		Filename:     img.Filename,
		ThumbnailURL: img.ThumbnailURL,
		HDURL:        img.HDURL,
		FileSize:     img.FileSize,
		ContentType:  img.ContentType,
		Downloads:    img.Downloads,
		Tags:         img.Tags,
		CreatedAt:    img.CreatedAt,
		UpdatedAt:    img.UpdatedAt,
		IsFeatured:   img.IsFeatured,
	}
}

// imageRepository implements repository.ImageRepository for MongoDB.
type imageRepository struct {
	db *DB
}

// NewImageRepository creates a MongoDB image repository.
func NewImageRepository(db *DB) repository.ImageRepository {
	return &imageRepository{db: db}
}

// Insert persists a new image record and returns the assigned ObjectID hex.
func (r *imageRepository) Insert(ctx context.Context, img *domain.Image) (string, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	res, err := r.db.Images().InsertOne(ctx, fromDomain(img))
	if err != nil {
		return "", fmt.Errorf("failed to insert image: %w", err)
	}

	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted ID type %T", res.InsertedID)
	}
	img.ID = oid.Hex()
	return img.ID, nil
}

// GetByID retrieves an image by its ObjectID hex.
func (r *imageRepository) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		// Malformed IDs behave exactly like absent records.
		return nil, domain.ErrImageNotFound
	}

	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	var doc imageDoc
	err = r.db.Images().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return doc.toDomain(), nil
}

// List returns images matching the filter, newest first.
func (r *imageRepository) List(ctx context.Context, filter repository.ImageFilter, opts repository.ListOptions) ([]*domain.Image, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	findOpts := options.Find().
		SetSkip(int64(opts.Skip)).
		SetLimit(int64(opts.Limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.db.Images().Find(ctx, buildFilter(filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer cursor.Close(ctx)

	images := []*domain.Image{}
	for cursor.Next(ctx) {
		var doc imageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		images = append(images, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}

	return images, nil
}

// Count returns the number of images matching the filter.
func (r *imageRepository) Count(ctx context.Context, filter repository.ImageFilter) (int64, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	count, err := r.db.Images().CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// UpdateFields applies the non-nil patch fields and stamps updated_at.
func (r *imageRepository) UpdateFields(ctx context.Context, id string, patch domain.ImagePatch) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrImageNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Tags != nil {
		set["tags"] = patch.Tags
	}
	if patch.IsFeatured != nil {
		set["is_featured"] = *patch.IsFeatured
	}

	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	res, err := r.db.Images().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

// Delete removes an image record.
func (r *imageRepository) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrImageNotFound
	}

	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	res, err := r.db.Images().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

// IncrementDownloads applies a single atomic $inc to the counter.
func (r *imageRepository) IncrementDownloads(ctx context.Context, id string, delta int64) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrImageNotFound
	}

	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	res, err := r.db.Images().UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"downloads": delta}},
	)
	if err != nil {
		return fmt.Errorf("failed to increment downloads: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

// SumDownloads aggregates the counter across all image records.
func (r *imageRepository) SumDownloads(ctx context.Context) (int64, error) {
	ctx, cancel := r.db.opCtx(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$downloads"},
		}}},
	}

	cursor, err := r.db.Images().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate downloads: %w", err)
	}
	defer cursor.Close(ctx)

	var result struct {
		Total int64 `bson:"total"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return 0, fmt.Errorf("failed to decode download total: %w", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate download total: %w", err)
	}

	return result.Total, nil
}

// buildFilter translates the typed filter into a query document.
// Tags use $all: matching images must carry every listed tag.
func buildFilter(filter repository.ImageFilter) bson.M {
	query := bson.M{}
	if len(filter.Tags) > 0 {
		query["tags"] = bson.M{"$all": filter.Tags}
	}
	if filter.Featured != nil {
		query["is_featured"] = *filter.Featured
	}
	return query
}
