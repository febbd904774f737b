// Package inmemory is a process-local stand-in for the mongo database used by
// tests. It implements databases.DatabaseHelper and understands the filter
// and update operators this repository issues.
package inmemory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/court-case-portal/databases"
)

// Database holds every collection in memory
type Database struct {
	mu          sync.Mutex
	collections map[string][]bson.M

	// FailOn makes the next write to a collection fail, keyed by collection
	// name. Used to simulate partial cascade failures.
	failOn map[string]error
}

// New returns an empty database
func New() *Database {
	return &Database{
		collections: map[string][]bson.M{},
		failOn:      map[string]error{},
	}
}

// FailNextWrite makes the next update or insert on the collection return err
func (d *Database) FailNextWrite(collection string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOn[collection] = err
}

// Len returns the number of documents stored in a collection
func (d *Database) Len(collection string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.collections[collection])
}

// Collection returns a handle to the named collection
func (d *Database) Collection(name string) databases.CollectionHelper {
	return &collection{db: d, name: name}
}

// Client returns a client whose every database is this one
func (d *Database) Client() databases.ClientHelper {
	return &client{db: d}
}

type client struct {
	db *Database
}

func (c *client) Database(string) databases.DatabaseHelper { return c.db }
func (c *client) Connect(context.Context) error            { return nil }
func (c *client) Ping(context.Context) error               { return nil }
func (c *client) Disconnect(context.Context) error         { return nil }

type collection struct {
	db   *Database
	name string
}

func (c *collection) takeFailure() error {
	err := c.db.failOn[c.name]
	delete(c.db.failOn, c.name)
	return err
}

func (c *collection) FindOne(_ context.Context, filter interface{}, opts ...*options.FindOneOptions) databases.SingleResultHelper {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return &singleResult{err: err}
	}
	var sortSpec interface{}
	for _, o := range opts {
		if o != nil && o.Sort != nil {
			sortSpec = o.Sort
		}
	}
	found, err := c.match(f, sortSpec)
	if err != nil {
		return &singleResult{err: err}
	}
	if len(found) == 0 {
		return &singleResult{err: mongo.ErrNoDocuments}
	}
	return &singleResult{doc: found[0]}
}

func (c *collection) Find(_ context.Context, filter interface{}, opts ...*options.FindOptions) (databases.CursorHelper, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return nil, err
	}
	var (
		sortSpec    interface{}
		skip, limit int64
	)
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Sort != nil {
			sortSpec = o.Sort
		}
		if o.Skip != nil {
			skip = *o.Skip
		}
		if o.Limit != nil {
			limit = *o.Limit
		}
	}
	found, err := c.match(f, sortSpec)
	if err != nil {
		return nil, err
	}
	if skip > 0 {
		if skip >= int64(len(found)) {
			found = nil
		} else {
			found = found[skip:]
		}
	}
	if limit > 0 && limit < int64(len(found)) {
		found = found[:limit]
	}
	docs := make([]bson.M, len(found))
	for i, d := range found {
		docs[i] = d
	}
	return &cursor{docs: docs}, nil
}

func (c *collection) InsertOne(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (databases.InsertOneResultHelper, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	if err := c.takeFailure(); err != nil {
		return nil, err
	}
	doc, err := toDoc(document)
	if err != nil {
		return nil, err
	}
	if err := c.insert(doc); err != nil {
		return nil, err
	}
	return &insertResult{id: doc["_id"]}, nil
}

func (c *collection) UpdateOne(_ context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.update(filter, update, false, upsertOf(opts))
}

func (c *collection) UpdateMany(_ context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.update(filter, update, true, upsertOf(opts))
}

func (c *collection) FindOneAndUpdate(_ context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) databases.SingleResultHelper {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	if err := c.takeFailure(); err != nil {
		return &singleResult{err: err}
	}
	upsert, after := false, false
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Upsert != nil {
			upsert = *o.Upsert
		}
		if o.ReturnDocument != nil {
			after = *o.ReturnDocument == options.After
		}
	}
	f, err := toDoc(filter)
	if err != nil {
		return &singleResult{err: err}
	}
	u, err := toDoc(update)
	if err != nil {
		return &singleResult{err: err}
	}
	found, err := c.match(f, nil)
	if err != nil {
		return &singleResult{err: err}
	}
	if len(found) == 0 {
		if !upsert {
			return &singleResult{err: mongo.ErrNoDocuments}
		}
		doc, err := c.upsert(f, u)
		if err != nil {
			return &singleResult{err: err}
		}
		if !after {
			return &singleResult{err: mongo.ErrNoDocuments}
		}
		return &singleResult{doc: doc}
	}
	doc := found[0]
	before, _ := toDoc(doc)
	if err := applyUpdate(doc, u, false); err != nil {
		return &singleResult{err: err}
	}
	if after {
		return &singleResult{doc: doc}
	}
	return &singleResult{doc: before}
}

func (c *collection) DeleteOne(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return err
	}
	docs := c.db.collections[c.name]
	for i, d := range docs {
		ok, err := matches(d, f)
		if err != nil {
			return err
		}
		if ok {
			c.db.collections[c.name] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *collection) CountDocuments(_ context.Context, filter interface{}, _ ...*options.CountOptions) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return 0, err
	}
	found, err := c.match(f, nil)
	return int64(len(found)), err
}

func (c *collection) update(filter, update interface{}, many, upsert bool) (*mongo.UpdateResult, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	if err := c.takeFailure(); err != nil {
		return nil, err
	}
	f, err := toDoc(filter)
	if err != nil {
		return nil, err
	}
	u, err := toDoc(update)
	if err != nil {
		return nil, err
	}
	found, err := c.match(f, nil)
	if err != nil {
		return nil, err
	}
	res := &mongo.UpdateResult{}
	if len(found) == 0 {
		if !upsert {
			return res, nil
		}
		doc, err := c.upsert(f, u)
		if err != nil {
			return nil, err
		}
		res.UpsertedCount = 1
		res.UpsertedID = doc["_id"]
		return res, nil
	}
	if !many {
		found = found[:1]
	}
	for _, doc := range found {
		before, _ := toDoc(doc)
		if err := applyUpdate(doc, u, false); err != nil {
			return nil, err
		}
		res.MatchedCount++
		if !reflect.DeepEqual(before, doc) {
			res.ModifiedCount++
		}
	}
	return res, nil
}

// match returns the live documents matching f, optionally sorted
func (c *collection) match(f bson.M, sortSpec interface{}) ([]bson.M, error) {
	var out []bson.M
	for _, d := range c.db.collections[c.name] {
		ok, err := matches(d, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	if sortSpec != nil {
		keys, err := sortKeys(sortSpec)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(out, func(i, j int) bool {
			for _, k := range keys {
				a, _ := lookup(out[i], k.Key)
				b, _ := lookup(out[j], k.Key)
				cmp := order(a, b)
				if cmp == 0 {
					continue
				}
				if dir, _ := toFloat(k.Value); dir < 0 {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	return out, nil
}

func (c *collection) insert(doc bson.M) error {
	if id, ok := doc["_id"]; !ok || id == nil || id == primitive.NilObjectID {
		doc["_id"] = primitive.NewObjectID()
	}
	for _, d := range c.db.collections[c.name] {
		if equal(d["_id"], doc["_id"]) {
			return duplicateKey(c.name, doc["_id"])
		}
	}
	c.db.collections[c.name] = append(c.db.collections[c.name], doc)
	return nil
}

func (c *collection) upsert(filter, update bson.M) (bson.M, error) {
	doc := bson.M{}
	for k, v := range filter {
		if strings.HasPrefix(k, "$") {
			continue
		}
		if m, ok := v.(bson.M); ok && isOperatorDoc(m) {
			if eq, ok := m["$eq"]; ok {
				setPath(doc, k, eq)
			}
			continue
		}
		setPath(doc, k, v)
	}
	if err := applyUpdate(doc, update, true); err != nil {
		return nil, err
	}
	if err := c.insert(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func upsertOf(opts []*options.UpdateOptions) bool {
	upsert := false
	for _, o := range opts {
		if o != nil && o.Upsert != nil {
			upsert = *o.Upsert
		}
	}
	return upsert
}

func duplicateKey(coll string, id interface{}) error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Index:   0,
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: _id_ dup key: { _id: %v }", coll, id),
	}}}
}

type singleResult struct {
	doc bson.M
	err error
}

func (sr *singleResult) Decode(v interface{}) error {
	if sr.err != nil {
		return sr.err
	}
	data, err := bson.Marshal(sr.doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(data, v)
}

type insertResult struct {
	id interface{}
}

func (ir *insertResult) Decode() interface{} {
	return ir.id
}

type cursor struct {
	docs []bson.M
}

func (cr *cursor) All(_ context.Context, results interface{}) error {
	rv := reflect.ValueOf(results)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return errors.New("results argument must be a pointer to a slice")
	}
	sliceType := rv.Elem().Type()
	out := reflect.MakeSlice(sliceType, 0, len(cr.docs))
	for _, d := range cr.docs {
		data, err := bson.Marshal(d)
		if err != nil {
			return err
		}
		elem := reflect.New(sliceType.Elem())
		if err := bson.Unmarshal(data, elem.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, elem.Elem())
	}
	rv.Elem().Set(out)
	return nil
}

func (cr *cursor) Close(context.Context) error {
	return nil
}

// toDoc round-trips v through BSON so stored documents, filters and updates
// all share one representation: bson.M for documents, primitive.A for arrays
func toDoc(v interface{}) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return normalize(m).(bson.M), nil
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := bson.M{}
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	case map[string]interface{}:
		return normalize(bson.M(t))
	case bson.D:
		out := bson.M{}
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make(primitive.A, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case []interface{}:
		return normalize(primitive.A(t))
	}
	return v
}

func sortKeys(spec interface{}) (bson.D, error) {
	switch s := spec.(type) {
	case bson.D:
		return s, nil
	case bson.M:
		if len(s) > 1 {
			return nil, errors.New("sort with more than one key must be a bson.D")
		}
		var d bson.D
		for k, v := range s {
			d = append(d, bson.E{Key: k, Value: v})
		}
		return d, nil
	}
	return nil, fmt.Errorf("unsupported sort specification %T", spec)
}

func isOperatorDoc(m bson.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func matches(doc, filter bson.M) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$or", "$and", "$nor":
			clauses, ok := cond.(primitive.A)
			if !ok {
				return false, fmt.Errorf("%s needs an array", key)
			}
			hits := 0
			for _, c := range clauses {
				cm, ok := c.(bson.M)
				if !ok {
					return false, fmt.Errorf("%s entries must be documents", key)
				}
				ok, err := matches(doc, cm)
				if err != nil {
					return false, err
				}
				if ok {
					hits++
				}
			}
			switch {
			case key == "$or" && hits == 0:
				return false, nil
			case key == "$and" && hits != len(clauses):
				return false, nil
			case key == "$nor" && hits > 0:
				return false, nil
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return false, fmt.Errorf("unsupported top-level operator %s", key)
		}

		val, found := lookup(doc, key)
		if m, ok := cond.(bson.M); ok && isOperatorDoc(m) {
			ok, err := matchOperators(val, found, m)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		if !eqOrContains(val, found, cond) {
			return false, nil
		}
	}
	return true, nil
}

func matchOperators(val interface{}, found bool, ops bson.M) (bool, error) {
	for op, operand := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = eqOrContains(val, found, operand)
		case "$ne":
			ok = !eqOrContains(val, found, operand)
		case "$in", "$nin":
			list, isList := operand.(primitive.A)
			if !isList {
				return false, fmt.Errorf("%s needs an array", op)
			}
			for _, x := range list {
				if eqOrContains(val, found, x) {
					ok = true
					break
				}
			}
			if op == "$nin" {
				ok = !ok
			}
		case "$gt", "$gte", "$lt", "$lte":
			ok = found && compareOp(op, val, operand)
		case "$exists":
			want, _ := operand.(bool)
			ok = found == want
		default:
			return false, fmt.Errorf("unsupported operator %s", op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func compareOp(op string, val, operand interface{}) bool {
	if arr, ok := val.(primitive.A); ok {
		for _, x := range arr {
			if compareOp(op, x, operand) {
				return true
			}
		}
		return false
	}
	cmp, ok := compare(val, operand)
	if !ok {
		return false
	}
	switch op {
	case "$gt":
		return cmp > 0
	case "$gte":
		return cmp >= 0
	case "$lt":
		return cmp < 0
	}
	return cmp <= 0
}

func eqOrContains(val interface{}, found bool, target interface{}) bool {
	if target == nil {
		return !found || val == nil
	}
	if !found {
		return false
	}
	if arr, ok := val.(primitive.A); ok {
		if _, targetIsArr := target.(primitive.A); !targetIsArr {
			for _, x := range arr {
				if equal(x, target) {
					return true
				}
			}
			return false
		}
	}
	return equal(val, target)
}

func equal(a, b interface{}) bool {
	if cmp, ok := compare(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two scalar values of a comparable kind
func compare(a, b interface{}) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case primitive.DateTime:
		if y, ok := b.(primitive.DateTime); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	case primitive.ObjectID:
		if y, ok := b.(primitive.ObjectID); ok {
			return bytes.Compare(x[:], y[:]), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			if x == y {
				return 0, true
			}
			if !x {
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

// order is compare with missing and mismatched values sorted first
func order(a, b interface{}) int {
	if cmp, ok := compare(a, b); ok {
		return cmp
	}
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// lookup resolves a dotted path. Crossing an array with a field name
// collects that field from every element, as mongo does.
func lookup(doc bson.M, path string) (interface{}, bool) {
	return lookupParts(doc, strings.Split(path, "."))
}

func lookupParts(cur interface{}, parts []string) (interface{}, bool) {
	if len(parts) == 0 {
		return cur, true
	}
	switch c := cur.(type) {
	case bson.M:
		v, ok := c[parts[0]]
		if !ok {
			return nil, false
		}
		return lookupParts(v, parts[1:])
	case primitive.A:
		if idx, err := strconv.Atoi(parts[0]); err == nil {
			if idx < 0 || idx >= len(c) {
				return nil, false
			}
			return lookupParts(c[idx], parts[1:])
		}
		var out primitive.A
		for _, el := range c {
			if v, ok := lookupParts(el, parts); ok {
				if arr, isArr := v.(primitive.A); isArr {
					out = append(out, arr...)
				} else {
					out = append(out, v)
				}
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

func setPath(doc bson.M, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			next = bson.M{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(bson.M)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func applyUpdate(doc, update bson.M, inserting bool) error {
	if len(update) == 0 {
		return errors.New("update document must not be empty")
	}
	for op, raw := range update {
		fields, ok := raw.(bson.M)
		if !ok {
			return fmt.Errorf("update operator %s needs a document", op)
		}
		for path, v := range fields {
			switch op {
			case "$set":
				setPath(doc, path, v)
			case "$setOnInsert":
				if inserting {
					setPath(doc, path, v)
				}
			case "$unset":
				unsetPath(doc, path)
			case "$inc":
				delta, ok := toFloat(v)
				if !ok {
					return fmt.Errorf("cannot $inc by %T", v)
				}
				cur, found := lookup(doc, path)
				base, isNum := toFloat(cur)
				if found && !isNum {
					return fmt.Errorf("cannot $inc non-numeric field %s", path)
				}
				if isWhole(cur, found) && isWhole(v, true) {
					setPath(doc, path, int64(base)+int64(delta))
				} else {
					setPath(doc, path, base+delta)
				}
			case "$push", "$addToSet":
				cur, found := lookup(doc, path)
				arr, isArr := cur.(primitive.A)
				if found && cur != nil && !isArr {
					return fmt.Errorf("cannot %s to non-array field %s", op, path)
				}
				items := primitive.A{v}
				if m, ok := v.(bson.M); ok {
					if each, ok := m["$each"].(primitive.A); ok {
						items = each
					}
				}
				next := append(primitive.A{}, arr...)
				for _, item := range items {
					if op == "$addToSet" && containsValue(next, item) {
						continue
					}
					next = append(next, item)
				}
				setPath(doc, path, next)
			default:
				return fmt.Errorf("unsupported update operator %s", op)
			}
		}
	}
	return nil
}

func isWhole(v interface{}, found bool) bool {
	if !found || v == nil {
		return true
	}
	switch v.(type) {
	case int, int32, int64:
		return true
	}
	return false
}

func containsValue(arr primitive.A, v interface{}) bool {
	for _, x := range arr {
		if equal(x, v) || reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}
