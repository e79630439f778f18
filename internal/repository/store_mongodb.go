package repository

import (
	"context"
	"fmt"
	"time"

	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBStore implements Store using MongoDB. An order is a single
// document with embedded lines, so the write is atomic without a session.
type MongoDBStore struct {
	client    *mongo.Client
	db        *mongo.Database
	inventory *mongo.Collection
	orders    *mongo.Collection
	log       *logger.Logger
}

// inventoryDocument is one ledger row.
type inventoryDocument struct {
	CardID    int64     `bson:"card_id"`
	Rarity    string    `bson:"rarity"`
	SetCode   string    `bson:"set_code,omitempty"`
	CardName  string    `bson:"card_name,omitempty"`
	Quantity  int       `bson:"quantity"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type orderDocument struct {
	ID        string              `bson:"_id"`
	CreatedAt time.Time           `bson:"created_at"`
	Items     []orderItemDocument `bson:"items"`
}

type orderItemDocument struct {
	LineNo   int                   `bson:"line_no"`
	CardID   int64                 `bson:"card_id"`
	Quantity int                   `bson:"quantity"`
	Price    *primitive.Decimal128 `bson:"price,omitempty"`
}

// NewMongoDBStore connects to MongoDB and ensures indexes.
func NewMongoDBStore(ctx context.Context, uri, database string, log *logger.Logger) (*MongoDBStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoDBStore{
		client:    client,
		db:        db,
		inventory: db.Collection("inventory"),
		orders:    db.Collection("orders"),
		log:       log,
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "card_id", Value: 1}, {Key: "rarity", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "set_code", Value: 1}, {Key: "card_name", Value: 1}},
		},
	}
	if _, err := s.inventory.Indexes().CreateMany(connectCtx, indexes); err != nil {
		log.Warn(ctx, "failed to create inventory indexes", "error", err.Error())
	}

	log.Info(ctx, "mongodb store initialized", "database", database)
	return s, nil
}

// Kind implements Store.
func (r *MongoDBStore) Kind() string { return "mongodb" }

// ListInventory returns ledger rows, optionally restricted to one card.
func (r *MongoDBStore) ListInventory(ctx context.Context, filter model.InventoryFilter) ([]model.InventoryRecord, error) {
	query := bson.M{}
	if filter.CardID != nil {
		query["card_id"] = *filter.CardID
	}

	findOpts := options.Find().SetSort(bson.D{
		{Key: "set_code", Value: 1},
		{Key: "card_name", Value: 1},
		{Key: "card_id", Value: 1},
		{Key: "rarity", Value: 1},
	})

	cursor, err := r.inventory.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []inventoryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}

	records := make([]model.InventoryRecord, 0, len(docs))
	for _, d := range docs {
		rec := model.InventoryRecord{
			CardVariant: model.CardVariant{CardID: d.CardID, Rarity: d.Rarity, SetCode: d.SetCode},
			CardName:    d.CardName,
			Quantity:    d.Quantity,
			UpdatedAt:   d.UpdatedAt,
		}
		rec.Key = rec.VariantKey()
		records = append(records, rec)
	}
	return records, nil
}

// ApplyQuantities upserts every update with an ordered bulk write.
func (r *MongoDBStore) ApplyQuantities(ctx context.Context, updates []model.InventoryUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		filter := bson.M{"card_id": u.Key.CardID, "rarity": u.Key.Rarity}
		update := bson.M{
			"$set": bson.M{
				"quantity":   u.Quantity,
				"updated_at": now,
			},
		}
		writes = append(writes, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}

	if _, err := r.inventory.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to upsert inventory: %w", err)
	}
	return nil
}

// AnnotateInventory sets catalog display data on existing rows. Missing
// rows are not created.
func (r *MongoDBStore) AnnotateInventory(ctx context.Context, details []model.VariantDetail) (int64, error) {
	if len(details) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(details))
	for _, d := range details {
		filter := bson.M{"card_id": d.Key.CardID, "rarity": d.Key.Rarity}
		set, unset := bson.M{}, bson.M{}
		for field, value := range map[string]string{"set_code": d.SetCode, "card_name": d.CardName} {
			if value == "" {
				unset[field] = ""
			} else {
				set[field] = value
			}
		}
		update := bson.M{}
		if len(set) > 0 {
			update["$set"] = set
		}
		if len(unset) > 0 {
			update["$unset"] = unset
		}
		writes = append(writes, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update))
	}

	res, err := r.inventory.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("failed to annotate inventory: %w", err)
	}
	return res.ModifiedCount, nil
}

// CreateOrder inserts the order as one document.
func (r *MongoDBStore) CreateOrder(ctx context.Context, order *model.OrderRecord) error {
	doc := orderDocument{
		ID:        order.ID,
		CreatedAt: order.CreatedAt,
		Items:     make([]orderItemDocument, 0, len(order.Lines)),
	}
	for i, line := range order.Lines {
		item := orderItemDocument{LineNo: i + 1, CardID: line.CardID, Quantity: line.Qty}
		if line.UnitPrice != nil {
			price, err := primitive.ParseDecimal128(line.UnitPrice.String())
			if err != nil {
				return fmt.Errorf("failed to encode price of line %d: %w", i+1, err)
			}
			item.Price = &price
		}
		doc.Items = append(doc.Items, item)
	}

	if _, err := r.orders.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// CountOrders returns the number of stored orders.
func (r *MongoDBStore) CountOrders(ctx context.Context) (int64, error) {
	count, err := r.orders.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// GetStats returns statistics about the collections.
func (r *MongoDBStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	rows, err := r.inventory.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["inventory_rows"] = rows

	orders, err := r.orders.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["orders"] = orders

	result := r.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}})
	var dbStats bson.M
	if err := result.Decode(&dbStats); err == nil {
		switch size := dbStats["dataSize"].(type) {
		case int64:
			stats["db_size_bytes"] = size
		case int32:
			stats["db_size_bytes"] = int64(size)
		case float64:
			stats["db_size_bytes"] = int64(size)
		}
	}

	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Ensure MongoDBStore implements Store
var _ Store = (*MongoDBStore)(nil)
