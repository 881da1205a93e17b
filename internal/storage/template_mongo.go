package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
)

const templateCollection = "templates"

// templateDoc is the stored shape. The page config is kept as its JSON
// text so element payloads round-trip byte for byte.
type templateDoc struct {
	ID              string    `bson:"_id"`
	Name            string    `bson:"name"`
	Description     string    `bson:"description"`
	PageConfig      string    `bson:"page_config"`
	PreviewImageURL string    `bson:"preview_image_url"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toDoc(t *domain.Template) (*templateDoc, error) {
	cfg, err := json.Marshal(t.PageConfig)
	if err != nil {
		return nil, &domain.StoreError{Code: domain.StoreCodeInvalid, Message: err.Error()}
	}
	return &templateDoc{
		ID:              t.ID,
		Name:            t.Name,
		Description:     t.Description,
		PageConfig:      string(cfg),
		PreviewImageURL: t.PreviewImageURL,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}, nil
}

func (d *templateDoc) toTemplate() (*domain.Template, error) {
	t := &domain.Template{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		PreviewImageURL: d.PreviewImageURL,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(d.PageConfig), &t.PageConfig); err != nil {
		return nil, fmt.Errorf("decode page_config of %s: %w", d.ID, err)
	}
	return t, nil
}

// MongoTemplateStore implements domain.TemplateStore on a MongoDB
// collection.
type MongoTemplateStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongoTemplateStore connects to uri and uses database dbName
// ("canvaskit" when empty).
func OpenMongoTemplateStore(ctx context.Context, uri, dbName string) (*MongoTemplateStore, error) {
	if dbName == "" {
		dbName = "canvaskit"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoTemplateStore{client: client, coll: client.Database(dbName).Collection(templateCollection)}, nil
}

func (s *MongoTemplateStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoTemplateStore) List(ctx context.Context) ([]domain.Template, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, backendError("list templates", err)
	}
	defer cur.Close(ctx)

	templates := []domain.Template{}
	for cur.Next(ctx) {
		var d templateDoc
		if err := cur.Decode(&d); err != nil {
			return nil, backendError("list templates", err)
		}
		t, err := d.toTemplate()
		if err != nil {
			return nil, backendError("list templates", err)
		}
		templates = append(templates, *t)
	}
	if err := cur.Err(); err != nil {
		return nil, backendError("list templates", err)
	}
	return templates, nil
}

func (s *MongoTemplateStore) Get(ctx context.Context, id string) (*domain.Template, error) {
	var d templateDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound(id)
	}
	if err != nil {
		return nil, backendError("get template", err)
	}
	t, err := d.toTemplate()
	if err != nil {
		return nil, backendError("get template", err)
	}
	return t, nil
}

func (s *MongoTemplateStore) Create(ctx context.Context, t *domain.Template) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	d, err := toDoc(t)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, d); err != nil {
		return backendError("create template", err)
	}
	return nil
}

func (s *MongoTemplateStore) Update(ctx context.Context, t *domain.Template) error {
	t.UpdatedAt = time.Now().UTC()
	d, err := toDoc(t)
	if err != nil {
		return err
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: d.Name},
		{Key: "description", Value: d.Description},
		{Key: "page_config", Value: d.PageConfig},
		{Key: "preview_image_url", Value: d.PreviewImageURL},
		{Key: "updated_at", Value: d.UpdatedAt},
	}}}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: t.ID}}, update)
	if err != nil {
		return backendError("update template", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFound(t.ID)
	}
	return nil
}

func (s *MongoTemplateStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return backendError("delete template", err)
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(id)
	}
	return nil
}
