// Package mongo is a storage.Store on MongoDB. Collection names follow the
// original document layout: expenses, expensevariants, payments and users.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"despesas/internal/core"
)

const (
	expensesCollection = "expenses"
	variantsCollection = "expensevariants"
	paymentsCollection = "payments"
	usersCollection    = "users"
)

type expenseDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	UserID      string               `bson:"userId"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Amount      primitive.Decimal128 `bson:"amount"`
	DueDay      int                  `bson:"dueDay"`
	StartDate   time.Time            `bson:"startDate"`
	EndDate     *time.Time           `bson:"endDate"`
	Category    string               `bson:"category"`
	Status      string               `bson:"status"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

type variantDoc struct {
	ID          primitive.ObjectID    `bson:"_id,omitempty"`
	ExpenseID   string                `bson:"expenseId"`
	Month       string                `bson:"month"`
	Amount      *primitive.Decimal128 `bson:"amount,omitempty"`
	DueDay      *int                  `bson:"dueDay,omitempty"`
	Category    *string               `bson:"category,omitempty"`
	Name        *string               `bson:"name,omitempty"`
	Description *string               `bson:"description,omitempty"`
	CreatedAt   time.Time             `bson:"createdAt"`
	UpdatedAt   time.Time             `bson:"updatedAt"`
}

type paymentDoc struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	ExpenseID string               `bson:"expenseId"`
	Month     string               `bson:"month"`
	Amount    primitive.Decimal128 `bson:"amount"`
	PaidAt    time.Time            `bson:"paidAt"`
	Method    string               `bson:"method"`
	Note      string               `bson:"note"`
	Status    string               `bson:"status"`
	CreatedAt time.Time            `bson:"createdAt"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type Store struct {
	client   *mongo.Client
	expenses *mongo.Collection
	variants *mongo.Collection
	payments *mongo.Collection
	users    *mongo.Collection
	now      func() time.Time
}

// Connect dials uri, selects database and ensures the unique indexes the
// stores rely on.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		expenses: db.Collection(expensesCollection),
		variants: db.Collection(variantsCollection),
		payments: db.Collection(paymentsCollection),
		users:    db.Collection(usersCollection),
		now:      time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("Connected to MongoDB", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	pair := mongo.IndexModel{
		Keys:    bson.D{{Key: "expenseId", Value: 1}, {Key: "month", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := s.variants.Indexes().CreateOne(ctx, pair); err != nil {
		return fmt.Errorf("create variant index: %w", err)
	}
	if _, err := s.payments.Indexes().CreateOne(ctx, pair); err != nil {
		return fmt.Errorf("create payment index: %w", err)
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create user index: %w", err)
	}
	if _, err := s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}, {Key: "startDate", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create expense index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateExpense(ctx context.Context, e *core.Expense) error {
	now := s.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = core.StatusActive
	}
	doc, err := toExpenseDoc(*e)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := s.expenses.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	e.ID = doc.ID.Hex()
	return nil
}

func (s *Store) GetExpense(ctx context.Context, ownerID, id string) (core.Expense, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	var doc expenseDoc
	err = s.expenses.FindOne(ctx, bson.M{"_id": oid, "userId": ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("find expense: %w", err)
	}
	return doc.toCore()
}

func (s *Store) ListActiveExpenses(ctx context.Context, ownerID string, periodEnd, nextPeriodStart time.Time) ([]core.Expense, error) {
	filter := bson.M{
		"userId":    ownerID,
		"status":    string(core.StatusActive),
		"startDate": bson.M{"$lte": periodEnd},
		"$or": bson.A{
			bson.M{"endDate": nil},
			bson.M{"endDate": bson.M{"$gte": nextPeriodStart}},
		},
	}
	// ObjectIDs grow with insertion time.
	cur, err := s.expenses.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	var docs []expenseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(docs))
	for _, d := range docs {
		e, err := d.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ListExpenseIDs(ctx context.Context, ownerID string) ([]string, error) {
	cur, err := s.expenses.Find(ctx, bson.M{"userId": ownerID},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find expense ids: %w", err)
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode expense ids: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID.Hex()
	}
	return ids, nil
}

func (s *Store) UpdateExpense(ctx context.Context, e *core.Expense) error {
	oid, err := primitive.ObjectIDFromHex(e.ID)
	if err != nil {
		return fmt.Errorf("expense %s: %w", e.ID, core.ErrNotFound)
	}
	e.UpdatedAt = s.now().UTC()
	doc, err := toExpenseDoc(*e)
	if err != nil {
		return err
	}
	res, err := s.expenses.UpdateOne(ctx, bson.M{"_id": oid, "userId": e.OwnerID}, bson.M{"$set": bson.M{
		"name":        doc.Name,
		"description": doc.Description,
		"amount":      doc.Amount,
		"dueDay":      doc.DueDay,
		"startDate":   doc.StartDate,
		"endDate":     doc.EndDate,
		"category":    doc.Category,
		"status":      doc.Status,
		"updatedAt":   doc.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("expense %s: %w", e.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, ownerID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	res, err := s.expenses.DeleteOne(ctx, bson.M{"_id": oid, "userId": ownerID})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) HasAnyExpense(ctx context.Context, ownerID string) (bool, error) {
	n, err := s.expenses.CountDocuments(ctx, bson.M{"userId": ownerID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count expenses: %w", err)
	}
	return n > 0, nil
}

func (s *Store) GetVariant(ctx context.Context, expenseID, month string) (*core.Variant, error) {
	var doc variantDoc
	err := s.variants.FindOne(ctx, bson.M{"expenseId": expenseID, "month": month}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find variant: %w", err)
	}
	v, err := doc.toCore()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) UpsertVariant(ctx context.Context, expenseID, month string, patch core.VariantPatch) (core.Variant, error) {
	now := s.now().UTC()
	set := bson.M{"updatedAt": now}
	if patch.Amount != nil {
		amount, err := toDecimal128(*patch.Amount)
		if err != nil {
			return core.Variant{}, err
		}
		set["amount"] = amount
	}
	if patch.DueDay != nil {
		set["dueDay"] = *patch.DueDay
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc variantDoc
	err := s.variants.FindOneAndUpdate(ctx,
		bson.M{"expenseId": expenseID, "month": month},
		bson.M{"$set": set, "$setOnInsert": bson.M{"createdAt": now}},
		opts,
	).Decode(&doc)
	if err != nil {
		return core.Variant{}, fmt.Errorf("upsert variant %s/%s: %w", expenseID, month, err)
	}
	return doc.toCore()
}

func (s *Store) ListVariants(ctx context.Context, expenseID string) ([]core.Variant, error) {
	return s.findVariants(ctx, bson.M{"expenseId": expenseID}, options.Find().SetSort(bson.D{{Key: "month", Value: 1}}))
}

func (s *Store) ListVariantsForMonth(ctx context.Context, expenseIDs []string, month string) ([]core.Variant, error) {
	if len(expenseIDs) == 0 {
		return nil, nil
	}
	return s.findVariants(ctx, bson.M{"expenseId": bson.M{"$in": expenseIDs}, "month": month})
}

func (s *Store) findVariants(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]core.Variant, error) {
	cur, err := s.variants.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find variants: %w", err)
	}
	var docs []variantDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	out := make([]core.Variant, 0, len(docs))
	for _, d := range docs {
		v, err := d.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) DeleteVariants(ctx context.Context, expenseID string) (int64, error) {
	return deleteMany(ctx, s.variants, bson.M{"expenseId": expenseID})
}

func (s *Store) DeleteVariantsFrom(ctx context.Context, expenseID, fromMonth string) (int64, error) {
	return deleteMany(ctx, s.variants, bson.M{"expenseId": expenseID, "month": bson.M{"$gte": fromMonth}})
}

func (s *Store) GetPayment(ctx context.Context, expenseID, month string) (*core.Payment, error) {
	var doc paymentDoc
	err := s.payments.FindOne(ctx, bson.M{"expenseId": expenseID, "month": month}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	p, err := doc.toCore()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *core.Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	amount, err := toDecimal128(p.Amount)
	if err != nil {
		return err
	}
	doc := paymentDoc{
		ID:        primitive.NewObjectID(),
		ExpenseID: p.ExpenseID,
		Month:     p.Month,
		Amount:    amount,
		PaidAt:    p.PaidAt,
		Method:    p.Method,
		Note:      p.Note,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
	}
	if _, err := s.payments.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("payment %s/%s: %w", p.ExpenseID, p.Month, core.ErrConflict)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	p.ID = doc.ID.Hex()
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, expenseID, month string) error {
	res, err := s.payments.DeleteOne(ctx, bson.M{"expenseId": expenseID, "month": month})
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("payment %s/%s: %w", expenseID, month, core.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPaymentsForMonth(ctx context.Context, expenseIDs []string, month string) ([]core.Payment, error) {
	if len(expenseIDs) == 0 {
		return nil, nil
	}
	cur, err := s.payments.Find(ctx, bson.M{"expenseId": bson.M{"$in": expenseIDs}, "month": month})
	if err != nil {
		return nil, fmt.Errorf("find payments: %w", err)
	}
	var docs []paymentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}
	out := make([]core.Payment, 0, len(docs))
	for _, d := range docs {
		p, err := d.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) DeletePayments(ctx context.Context, expenseID string) (int64, error) {
	return deleteMany(ctx, s.payments, bson.M{"expenseId": expenseID})
}

func (s *Store) DeletePaymentsFrom(ctx context.Context, expenseID, fromMonth string) (int64, error) {
	return deleteMany(ctx, s.payments, bson.M{"expenseId": expenseID, "month": bson.M{"$gte": fromMonth}})
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	now := s.now().UTC()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Role == "" {
		u.Role = core.RoleUser
	}
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Name:      u.Name,
		Email:     u.Email,
		Password:  u.PasswordHash,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s: %w", u.Email, core.ErrEmailTaken)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = doc.ID.Hex()
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (core.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	return s.findUser(ctx, bson.M{"_id": oid}, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	email = strings.ToLower(email)
	return s.findUser(ctx, bson.M{"email": email}, email)
}

func (s *Store) UpdateUser(ctx context.Context, u *core.User) error {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return fmt.Errorf("user %s: %w", u.ID, core.ErrNotFound)
	}
	u.UpdatedAt = s.now().UTC()
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":      u.Name,
		"email":     strings.ToLower(u.Email),
		"password":  u.PasswordHash,
		"role":      string(u.Role),
		"updatedAt": u.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s: %w", u.Email, core.ErrEmailTaken)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", u.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M, key string) (core.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.User{}, fmt.Errorf("user %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	return core.User{
		ID:           doc.ID.Hex(),
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.Password,
		Role:         core.Role(doc.Role),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func deleteMany(ctx context.Context, coll *mongo.Collection, filter bson.M) (int64, error) {
	res, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func toExpenseDoc(e core.Expense) (expenseDoc, error) {
	amount, err := toDecimal128(e.Amount)
	if err != nil {
		return expenseDoc{}, err
	}
	return expenseDoc{
		UserID:      e.OwnerID,
		Name:        e.Name,
		Description: e.Description,
		Amount:      amount,
		DueDay:      e.DueDay,
		StartDate:   e.StartDate.UTC(),
		EndDate:     e.EndDate,
		Category:    e.Category,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}, nil
}

func (d expenseDoc) toCore() (core.Expense, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		ID:          d.ID.Hex(),
		OwnerID:     d.UserID,
		Name:        d.Name,
		Description: d.Description,
		Amount:      amount,
		DueDay:      d.DueDay,
		StartDate:   d.StartDate.UTC(),
		Category:    d.Category,
		Status:      core.ExpenseStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.EndDate != nil {
		end := d.EndDate.UTC()
		e.EndDate = &end
	}
	return e, nil
}

func (d variantDoc) toCore() (core.Variant, error) {
	v := core.Variant{
		ID:        d.ID.Hex(),
		ExpenseID: d.ExpenseID,
		Month:     d.Month,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	patch := core.VariantPatch{DueDay: d.DueDay, Category: d.Category, Name: d.Name, Description: d.Description}
	if d.Amount != nil {
		amount, err := fromDecimal128(*d.Amount)
		if err != nil {
			return core.Variant{}, err
		}
		patch.Amount = &amount
	}
	v.Apply(patch)
	return v, nil
}

func (d paymentDoc) toCore() (core.Payment, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return core.Payment{}, err
	}
	return core.Payment{
		ID:        d.ID.Hex(),
		ExpenseID: d.ExpenseID,
		Month:     d.Month,
		Amount:    amount,
		PaidAt:    d.PaidAt.UTC(),
		Method:    d.Method,
		Note:      d.Note,
		Status:    core.PaymentStatus(d.Status),
		CreatedAt: d.CreatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode amount %s: %w", v, err)
	}
	return d, nil
}
