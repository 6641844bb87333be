package source

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/juju/collections/set"
	"github.com/pkg/errors"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

const (
	attributeDefsSQL = `SELECT id, type, name FROM Attribute ORDER BY id`

	attributeValuesSQL = `SELECT object_id, attr_id, COALESCE(string_value, '') AS string_value,
	COALESCE(uint_value, 0) AS uint_value, COALESCE(float_value, 0) AS float_value
FROM AttributeValue WHERE attr_id NOT IN (?) ORDER BY attr_id, object_id`

	natSQL = `SELECT proto, localip, COALESCE(localport, 0) AS localport, remoteip,
	COALESCE(remoteport, 0) AS remoteport, COALESCE(description, '') AS description
FROM IPv4NAT ORDER BY localip, localport, remoteip, remoteport`

	loadBalancersSQL = `SELECT lb.object_id, COALESCE(lb.prio, '') AS prio, vs.vip, COALESCE(vs.vport, 0) AS vport,
	COALESCE(vs.proto, '') AS proto, COALESCE(vs.name, '') AS vs_name, COALESCE(p.name, '') AS pool
FROM IPv4LB lb JOIN IPv4VS vs ON vs.id = lb.vs_id LEFT JOIN IPv4RSPool p ON p.id = lb.rspool_id
ORDER BY lb.object_id, vs.id, lb.rspool_id`

	cactiSQL = `SELECT g.object_id, g.graph_id, COALESCE(g.caption, '') AS caption, COALESCE(s.base_url, '') AS base_url
FROM CactiGraph g LEFT JOIN CactiServer s ON s.id = g.server_id ORDER BY g.object_id, g.graph_id`

	fileLinksSQL = `SELECT fl.entity_id, f.name FROM FileLink fl JOIN File f ON f.id = fl.file_id
WHERE fl.entity_type = 'object' ORDER BY fl.entity_id, f.name`
)

type attributeDefRow struct {
	ID   int    `gorm:"column:id"`
	Type string `gorm:"column:type"`
	Name string `gorm:"column:name"`
}

type natRow struct {
	Proto       string `gorm:"column:proto"`
	LocalIP     int64  `gorm:"column:localip"`
	LocalPort   int    `gorm:"column:localport"`
	RemoteIP    int64  `gorm:"column:remoteip"`
	RemotePort  int    `gorm:"column:remoteport"`
	Description string `gorm:"column:description"`
}

type loadBalancerRow struct {
	ObjectID int    `gorm:"column:object_id"`
	Prio     string `gorm:"column:prio"`
	VIP      int64  `gorm:"column:vip"`
	VPort    int    `gorm:"column:vport"`
	Proto    string `gorm:"column:proto"`
	VSName   string `gorm:"column:vs_name"`
	Pool     string `gorm:"column:pool"`
}

type cactiRow struct {
	ObjectID int    `gorm:"column:object_id"`
	GraphID  int    `gorm:"column:graph_id"`
	Caption  string `gorm:"column:caption"`
	BaseURL  string `gorm:"column:base_url"`
}

type fileLinkRow struct {
	EntityID int    `gorm:"column:entity_id"`
	Name     string `gorm:"column:name"`
}

var hostTypes = []string{"dcim.device", "virtualization.virtualmachine"}

// annotations is optional RackTables data carried as custom fields on
// devices, virtual machines and IP addresses.
type annotations struct {
	fields  []models.Record
	defined set.Strings
	objects map[int]models.CustomFields
	addrs   map[netip.Addr]models.CustomFields
	vips    map[netip.Addr]bool
}

func newAnnotations() *annotations {
	return &annotations{
		defined: set.NewStrings(),
		objects: make(map[int]models.CustomFields),
		addrs:   make(map[netip.Addr]models.CustomFields),
		vips:    make(map[netip.Addr]bool),
	}
}

func (a *annotations) define(name, label, kind, description string, objectTypes ...string) {
	if a.defined.Contains(name) {
		return
	}
	a.defined.Add(name)
	a.fields = append(a.fields, &models.CustomFieldRecord{
		Name: name, Label: truncate(label, 50), Kind: kind,
		ObjectTypes: objectTypes, Description: description,
	})
}

func (a *annotations) setObject(id int, field string, value interface{}) {
	if a.objects[id] == nil {
		a.objects[id] = make(models.CustomFields)
	}
	a.objects[id][field] = value
}

func (a *annotations) appendObject(id int, field, text string) {
	if a.objects[id] == nil {
		a.objects[id] = make(models.CustomFields)
	}
	a.objects[id][field] = joinNote(a.objects[id][field], text)
}

func (a *annotations) appendAddr(addr netip.Addr, field, text string) {
	if a.addrs[addr] == nil {
		a.addrs[addr] = make(models.CustomFields)
	}
	a.addrs[addr][field] = joinNote(a.addrs[addr][field], text)
}

// joinNote appends text to a "; " separated list unless it is there.
func joinNote(cur interface{}, text string) string {
	s, _ := cur.(string)
	if s == "" {
		return text
	}
	for _, part := range strings.Split(s, "; ") {
		if part == text {
			return s
		}
	}
	return s + "; " + text
}

// annotatable reports whether id becomes a device or a virtual machine.
func (s *snapshot) annotatable(id int) bool {
	o := s.objects[id]
	return o != nil && (isDevice(o) || o.ObjtypeID == objtypeVM)
}

type annotationLoader struct {
	enabled bool
	name    string
	tables  []string
	load    func(context.Context, *snapshot, *annotations) error
}

// loadAnnotations reads the enabled extras whose tables exist. Databases
// of older or newer schema versions lack some of them.
func (r *Reader) loadAnnotations(ctx context.Context, s *snapshot) (*annotations, error) {
	a := newAnnotations()
	loaders := []annotationLoader{
		{r.cfg.Extras.Attributes, "attributes", []string{"Attribute"}, r.loadAttributes},
		{r.cfg.Extras.NAT, "NAT rules", []string{"IPv4NAT"}, r.loadNAT},
		{r.cfg.Extras.LoadBalancers, "load balancers", []string{"IPv4LB", "IPv4VS", "IPv4RSPool"}, r.loadLoadBalancers},
		{r.cfg.Extras.Monitoring, "monitoring", []string{"CactiGraph", "CactiServer"}, r.loadMonitoring},
		{r.cfg.Extras.Files, "files", []string{"File", "FileLink"}, r.loadFiles},
	}
	for _, l := range loaders {
		if !l.enabled {
			continue
		}
		if missing := r.missingTable(l.tables...); missing != "" {
			r.log.Debugf("SKIP: %s: no %s table", l.name, missing)
			continue
		}
		if err := l.load(ctx, s, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (r *Reader) missingTable(names ...string) string {
	for _, n := range names {
		if !r.hasTable(n) {
			return n
		}
	}
	return ""
}

// loadAttributes turns every attribute other than the ones mapped to
// native fields into a custom field named after its slug.
func (r *Reader) loadAttributes(ctx context.Context, s *snapshot, a *annotations) error {
	var defs []attributeDefRow
	if err := r.raw(ctx, &defs, attributeDefsSQL); err != nil {
		return errors.Wrap(err, "reading attribute definitions")
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = attributeFieldName(d.Name)
	}
	byID := make(map[int]int, len(defs))
	for i, n := range dedupe(names, "_") {
		names[i] = n
		byID[defs[i].ID] = i
	}

	var values []attributeRow
	if err := r.raw(ctx, &values, attributeValuesSQL, []int{attrHWType, attrRackHeight, attrSerial}); err != nil {
		return errors.Wrap(err, "reading attribute values")
	}
	for _, v := range values {
		i, ok := byID[v.AttrID]
		if !ok || names[i] == "" || !s.annotatable(v.ObjectID) {
			continue
		}
		value, ok := attributeValue(defs[i].Type, v, s.dict)
		if !ok {
			continue
		}
		a.define(names[i], defs[i].Name, attributeKind(defs[i].Type), "RackTables attribute", hostTypes...)
		a.setObject(v.ObjectID, names[i], value)
	}
	return nil
}

func attributeFieldName(name string) string {
	return truncate(strings.ReplaceAll(slug.Make(name), "-", "_"), 50)
}

func attributeKind(t string) string {
	switch t {
	case "uint":
		return "integer"
	case "float":
		return "decimal"
	case "date":
		return "date"
	}
	return "text"
}

func attributeValue(t string, v attributeRow, dict map[int]string) (interface{}, bool) {
	switch t {
	case "uint":
		return v.UintValue, true
	case "float":
		return v.FloatValue, true
	case "dict":
		name, ok := dict[int(v.UintValue)]
		return name, ok && name != ""
	case "date":
		if v.UintValue == 0 {
			return nil, false
		}
		return time.Unix(v.UintValue, 0).UTC().Format("2006-01-02"), true
	}
	return v.StringValue, v.StringValue != ""
}

// loadNAT annotates both addresses of every IPv4 NAT rule with the other
// end.
func (r *Reader) loadNAT(ctx context.Context, s *snapshot, a *annotations) error {
	var rows []natRow
	if err := r.raw(ctx, &rows, natSQL); err != nil {
		return errors.Wrap(err, "reading NAT rules")
	}
	if len(rows) == 0 {
		return nil
	}
	a.define(models.CustomFieldNATType, "NAT Type", "text", "RackTables NAT rule kind", "ipam.ipaddress")
	a.define(models.CustomFieldNATMatch, "NAT Match", "text", "Other end of RackTables NAT rules", "ipam.ipaddress")
	for _, n := range rows {
		local, remote := addr4(n.LocalIP), addr4(n.RemoteIP)
		localKind, remoteKind := "Static NAT", "Static NAT"
		if n.LocalPort != 0 {
			localKind = "Source NAT"
		}
		if n.RemotePort != 0 {
			remoteKind = "Destination NAT"
		}
		a.appendAddr(local, models.CustomFieldNATType, localKind)
		a.appendAddr(local, models.CustomFieldNATMatch, natEndpoint(remote, n.RemotePort, n.Proto, n.Description))
		a.appendAddr(remote, models.CustomFieldNATType, remoteKind)
		a.appendAddr(remote, models.CustomFieldNATMatch, natEndpoint(local, n.LocalPort, n.Proto, n.Description))
	}
	return nil
}

func natEndpoint(addr netip.Addr, port int, proto, description string) string {
	out := addr.String()
	if port != 0 {
		out = fmt.Sprintf("%s:%d/%s", addr, port, strings.ToLower(proto))
	}
	if description != "" {
		out += " (" + description + ")"
	}
	return out
}

// loadLoadBalancers lists the IPv4 virtual services of each balancer and
// marks their virtual IPs.
func (r *Reader) loadLoadBalancers(ctx context.Context, s *snapshot, a *annotations) error {
	var rows []loadBalancerRow
	if err := r.raw(ctx, &rows, loadBalancersSQL); err != nil {
		return errors.Wrap(err, "reading load balancers")
	}
	for _, lb := range rows {
		vip := addr4(lb.VIP)
		a.vips[vip] = true
		if lb.Pool != "" {
			a.define(models.CustomFieldLBPool, "LB Pool", "text", "RackTables real server pools", "ipam.ipaddress")
			a.appendAddr(vip, models.CustomFieldLBPool, lb.Pool)
		}
		if !s.annotatable(lb.ObjectID) {
			continue
		}
		svc := fmt.Sprintf("%s:%d/%s", vip, lb.VPort, strings.ToLower(lb.Proto))
		if lb.VSName != "" {
			svc = lb.VSName + " " + svc
		}
		if lb.Pool != "" {
			svc += " pool " + lb.Pool
		}
		if lb.Prio != "" {
			svc += " prio " + lb.Prio
		}
		a.define(models.CustomFieldLBServices, "LB Virtual Services", "text", "RackTables virtual services", hostTypes...)
		a.appendObject(lb.ObjectID, models.CustomFieldLBServices, svc)
	}
	return nil
}

// loadMonitoring links the Cacti graphs of each object; the first graph of
// a known server becomes the monitoring URL.
func (r *Reader) loadMonitoring(ctx context.Context, s *snapshot, a *annotations) error {
	var rows []cactiRow
	if err := r.raw(ctx, &rows, cactiSQL); err != nil {
		return errors.Wrap(err, "reading Cacti graphs")
	}
	for _, g := range rows {
		if !s.annotatable(g.ObjectID) {
			continue
		}
		a.define(models.CustomFieldCactiGraphs, "Cacti Graphs", "text", "RackTables Cacti graphs", hostTypes...)
		graph := fmt.Sprintf("%d", g.GraphID)
		if g.Caption != "" {
			graph = fmt.Sprintf("%s (%d)", g.Caption, g.GraphID)
		}
		a.appendObject(g.ObjectID, models.CustomFieldCactiGraphs, graph)

		if g.BaseURL == "" {
			continue
		}
		if _, done := a.objects[g.ObjectID][models.CustomFieldMonitoring]; done {
			continue
		}
		a.define(models.CustomFieldMonitoring, "Monitoring URL", "url", "First Cacti graph", hostTypes...)
		a.setObject(g.ObjectID, models.CustomFieldMonitoring,
			fmt.Sprintf("%s/graph_view.php?action=tree&select_first=true&graph_id=%d", strings.TrimRight(g.BaseURL, "/"), g.GraphID))
	}
	return nil
}

// loadFiles lists the names of files attached to objects.
func (r *Reader) loadFiles(ctx context.Context, s *snapshot, a *annotations) error {
	var rows []fileLinkRow
	if err := r.raw(ctx, &rows, fileLinksSQL); err != nil {
		return errors.Wrap(err, "reading file links")
	}
	for _, f := range rows {
		if !s.annotatable(f.EntityID) || f.Name == "" {
			continue
		}
		a.define(models.CustomFieldFileRefs, "File References", "text", "Files attached in RackTables", hostTypes...)
		a.appendObject(f.EntityID, models.CustomFieldFileRefs, f.Name)
	}
	return nil
}
