// Package source reads a RackTables database and turns its rows into
// migration records. Scope takes a snapshot of the object tree once per run;
// the type specific tables are queried when their stage asks for them.
package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/juju/collections/set"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rflorenc/racktables-migrator/internal/config"
	"github.com/rflorenc/racktables-migrator/internal/models"
)

// Reader is a read-only handle on a RackTables database.
type Reader struct {
	db  *gorm.DB
	cfg config.Source
	log logrus.FieldLogger
}

// Open connects to the database named by cfg.
func Open(cfg config.Source, log logrus.FieldLogger) (*Reader, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql", "":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, errors.Errorf("unsupported source driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(log.WithField("component", "gorm"), gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s source", cfg.Driver)
	}
	return New(db, cfg, log), nil
}

// New wraps an open gorm handle.
func New(db *gorm.DB, cfg config.Source, log logrus.FieldLogger) *Reader {
	return &Reader{db: db, cfg: cfg, log: log}
}

func (r *Reader) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Reader) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Reader) raw(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return r.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}

func (r *Reader) hasTable(name string) bool {
	return r.db.Migrator().HasTable(name)
}

// Scope snapshots the object tree and restricts it to the filters. Unknown
// site or tenant names are models.ErrUnknownFilter.
func (r *Reader) Scope(ctx context.Context, f models.Filters) (*View, error) {
	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if f.Site != "" {
		if _, ok := snap.locations[f.Site]; !ok && f.Site != r.cfg.UnrackedSite {
			return nil, errors.Wrapf(models.ErrUnknownFilter, "site %q", f.Site)
		}
	}
	if f.Tenant != "" && !snap.tagExists(f.Tenant) {
		return nil, errors.Wrapf(models.ErrUnknownFilter, "tenant %q", f.Tenant)
	}
	v := newView(r, f, snap)
	v.computeScope()
	r.log.Infof("Source scope: %d sites, %d racks, %d devices, %d clusters, %d virtual machines",
		len(v.sites), len(v.racks), v.devices.Size(), v.clusters.Size(), v.vms.Size())
	return v, nil
}

// placement is where an object sits in a rack.
type placement struct {
	rack  int
	units set.Ints
	atoms set.Strings
}

func (p *placement) position() int {
	units := p.units.SortedValues()
	if len(units) == 0 {
		return 0
	}
	return units[0]
}

func (p *placement) face() string {
	if p.atoms.Contains("rear") && !p.atoms.Contains("front") {
		return "rear"
	}
	return "front"
}

func (p *placement) fullDepth() bool {
	return p.atoms.Contains("front") && p.atoms.Contains("rear")
}

// rackPlace is the location of a rack object.
type rackPlace struct {
	site string
	name string
}

// snapshot is the object tree of the source database.
type snapshot struct {
	objects   map[int]*objectRow
	order     []int
	names     map[int]string
	locations map[string]int
	dict      map[int]string
	tagNames  map[int]string
	tags      map[string]map[int][]string
	attrs     map[int]map[int]attributeRow
	racks     map[int]rackPlace
	placement map[int]*placement
	parents   map[int][]int
	children  map[int][]int
	notes     *annotations
}

func (r *Reader) load(ctx context.Context) (*snapshot, error) {
	s := &snapshot{
		objects:   make(map[int]*objectRow),
		names:     make(map[int]string),
		locations: make(map[string]int),
		dict:      make(map[int]string),
		tagNames:  make(map[int]string),
		tags:      make(map[string]map[int][]string),
		attrs:     make(map[int]map[int]attributeRow),
		racks:     make(map[int]rackPlace),
		placement: make(map[int]*placement),
		parents:   make(map[int][]int),
		children:  make(map[int][]int),
	}

	var objects []objectRow
	if err := r.raw(ctx, &objects, objectsSQL); err != nil {
		return nil, errors.Wrap(err, "reading objects")
	}
	for i := range objects {
		o := &objects[i]
		s.objects[o.ID] = o
		s.order = append(s.order, o.ID)
		if o.ObjtypeID == objtypeLocation && o.Name != "" {
			if _, dup := s.locations[o.Name]; !dup {
				s.locations[o.Name] = o.ID
			}
		}
	}
	s.dedupeNames()

	var dict []dictionaryRow
	if err := r.raw(ctx, &dict, dictionarySQL); err != nil {
		return nil, errors.Wrap(err, "reading dictionary")
	}
	for _, d := range dict {
		s.dict[d.Key] = cleanDictValue(d.Value)
	}

	var attrs []attributeRow
	if err := r.raw(ctx, &attrs, attributesSQL, []int{attrHWType, attrRackHeight, attrSerial}); err != nil {
		return nil, errors.Wrap(err, "reading attributes")
	}
	for _, a := range attrs {
		if s.attrs[a.ObjectID] == nil {
			s.attrs[a.ObjectID] = make(map[int]attributeRow)
		}
		s.attrs[a.ObjectID][a.AttrID] = a
	}

	if err := r.loadTags(ctx, s); err != nil {
		return nil, err
	}
	if err := r.loadTree(ctx, s); err != nil {
		return nil, err
	}
	notes, err := r.loadAnnotations(ctx, s)
	if err != nil {
		return nil, err
	}
	s.notes = notes
	return s, nil
}

// dedupeNames gives devices, virtual machines and clusters unique names
// within their kind, in object id order.
func (s *snapshot) dedupeNames() {
	byKind := make(map[string][]int)
	for _, id := range s.order {
		o := s.objects[id]
		switch o.ObjtypeID {
		case objtypeRack, objtypeRow, objtypeLocation:
			s.names[id] = o.Name
			continue
		}
		k := kindOf(o)
		byKind[k] = append(byKind[k], id)
	}
	for _, ids := range byKind {
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = s.objects[id].Name
		}
		for i, n := range dedupe(names, ".") {
			s.names[ids[i]] = n
		}
	}
}

func kindOf(o *objectRow) string {
	switch o.ObjtypeID {
	case objtypeVM:
		return "vm"
	case objtypeCluster:
		return "cluster"
	}
	return "device"
}

func isDevice(o *objectRow) bool {
	switch o.ObjtypeID {
	case objtypeVM, objtypeCluster, objtypeRack, objtypeRow, objtypeLocation:
		return false
	}
	return true
}

func (r *Reader) loadTags(ctx context.Context, s *snapshot) error {
	var tags []tagRow
	if err := r.raw(ctx, &tags, tagsSQL); err != nil {
		return errors.Wrap(err, "reading tags")
	}
	for _, t := range tags {
		s.tagNames[t.ID] = t.Tag
	}
	var storage []tagStorageRow
	if err := r.raw(ctx, &storage, tagStorageSQL); err != nil {
		return errors.Wrap(err, "reading tag storage")
	}
	for _, ts := range storage {
		name, ok := s.tagNames[ts.TagID]
		if !ok {
			continue
		}
		if s.tags[ts.Realm] == nil {
			s.tags[ts.Realm] = make(map[int][]string)
		}
		s.tags[ts.Realm][ts.EntityID] = append(s.tags[ts.Realm][ts.EntityID], name)
	}
	for _, entities := range s.tags {
		for _, names := range entities {
			sort.Strings(names)
		}
	}
	return nil
}

func (s *snapshot) tagExists(name string) bool {
	for _, t := range s.tagNames {
		if t == name {
			return true
		}
	}
	return false
}

func (s *snapshot) tagged(realm string, id int) []string {
	return s.tags[realm][id]
}

func (s *snapshot) hasTag(realm string, id int, tag string) bool {
	for _, t := range s.tags[realm][id] {
		if t == tag {
			return true
		}
	}
	return false
}

func (s *snapshot) attr(id, attr int) (attributeRow, bool) {
	a, ok := s.attrs[id][attr]
	return a, ok
}

// loadTree reads the location/row/rack hierarchy, rack space and
// object-to-object links.
func (r *Reader) loadTree(ctx context.Context, s *snapshot) error {
	var links []linkRow
	if err := r.raw(ctx, &links, linksSQL); err != nil {
		return errors.Wrap(err, "reading entity links")
	}
	rowSite := make(map[int]int)
	rackRow := make(map[int]int)
	for _, l := range links {
		switch {
		case l.ParentType == "location" && l.ChildType == "row":
			rowSite[l.ChildID] = l.ParentID
		case l.ParentType == "row" && l.ChildType == "rack":
			rackRow[l.ChildID] = l.ParentID
		case l.ParentType == "object" && l.ChildType == "object":
			s.children[l.ParentID] = append(s.children[l.ParentID], l.ChildID)
			s.parents[l.ChildID] = append(s.parents[l.ChildID], l.ParentID)
		}
	}
	for rack, row := range rackRow {
		loc, ok := rowSite[row]
		if !ok || s.objects[rack] == nil || s.objects[row] == nil || s.objects[loc] == nil {
			r.log.Debugf("rack %d is not placed in a location", rack)
			continue
		}
		site := s.objects[loc].Name
		s.racks[rack] = rackPlace{
			site: site,
			name: strings.Join([]string{site, s.objects[row].Name, s.objects[rack].Name}, "."),
		}
	}

	var space []rackSpaceRow
	if err := r.raw(ctx, &space, rackSpaceSQL); err != nil {
		return errors.Wrap(err, "reading rack space")
	}
	for _, rs := range space {
		p := s.placement[rs.ObjectID]
		if p == nil {
			p = &placement{rack: rs.RackID, units: set.NewInts(), atoms: set.NewStrings()}
			s.placement[rs.ObjectID] = p
		}
		// objects spanning racks keep the first one
		if rs.RackID != p.rack {
			continue
		}
		p.units.Add(rs.UnitNo)
		p.atoms.Add(rs.Atom)
	}
	return nil
}

func (s *snapshot) objtypeName(id int) string {
	if n := s.dict[id]; n != "" {
		return n
	}
	return fmt.Sprintf("objtype-%d", id)
}
