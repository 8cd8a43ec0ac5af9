package reader

import (
	"errors"
	"fmt"
	"math"

	"github.com/parquet-go/parquet-go"
)

// ErrSchema classifies datasets whose schema cannot serve the query.
var ErrSchema = errors.New("schema mismatch")

// ColumnNotFoundError is returned when a required column is absent.
type ColumnNotFoundError struct {
	Name string
	Path string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found in %s", e.Name, e.Path)
}

// Is reports ErrSchema so callers can classify the failure.
func (e *ColumnNotFoundError) Is(target error) bool {
	return target == ErrSchema
}

// SchemaError is returned when a required column has an unusable type.
type SchemaError struct {
	Column  string
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q in %s: %s", e.Column, e.Path, e.Message)
}

// Is reports ErrSchema so callers can classify the failure.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// ColumnSpec names the seven lineitem columns the aggregation reads.
type ColumnSpec struct {
	ReturnFlag    string `yaml:"return_flag"`
	LineStatus    string `yaml:"line_status"`
	Quantity      string `yaml:"quantity"`
	ExtendedPrice string `yaml:"extended_price"`
	Discount      string `yaml:"discount"`
	Tax           string `yaml:"tax"`
	ShipDate      string `yaml:"ship_date"`
}

// DefaultColumnSpec returns the TPC-H lineitem column names.
func DefaultColumnSpec() ColumnSpec {
	return ColumnSpec{
		ReturnFlag:    "l_returnflag",
		LineStatus:    "l_linestatus",
		Quantity:      "l_quantity",
		ExtendedPrice: "l_extendedprice",
		Discount:      "l_discount",
		Tax:           "l_tax",
		ShipDate:      "l_shipdate",
	}
}

// Names returns the column names in batch order.
func (s ColumnSpec) Names() []string {
	return []string{s.ReturnFlag, s.LineStatus, s.Quantity, s.ExtendedPrice, s.Discount, s.Tax, s.ShipDate}
}

// columnRole describes how a column is decoded into a batch buffer.
type columnRole int

const (
	roleCategorical columnRole = iota
	roleMeasure
	roleDate
)

func (r columnRole) String() string {
	switch r {
	case roleCategorical:
		return "categorical"
	case roleMeasure:
		return "measure"
	case roleDate:
		return "date"
	default:
		return "unknown"
	}
}

// batch slot of each column, matching ColumnSpec.Names.
const (
	colReturnFlag = iota
	colLineStatus
	colQuantity
	colExtendedPrice
	colDiscount
	colTax
	colShipDate
	numColumns
)

var columnRoles = [numColumns]columnRole{
	colReturnFlag:    roleCategorical,
	colLineStatus:    roleCategorical,
	colQuantity:      roleMeasure,
	colExtendedPrice: roleMeasure,
	colDiscount:      roleMeasure,
	colTax:           roleMeasure,
	colShipDate:      roleDate,
}

// boundColumn is a required column resolved against one file's schema.
type boundColumn struct {
	name     string
	role     columnRole
	index    int // column chunk index within a row group
	kind     parquet.Kind
	scale    float64 // divisor for DECIMAL measures, 1 otherwise
	optional bool
}

// bindColumns resolves every column of spec against schema.
func bindColumns(schema *parquet.Schema, spec ColumnSpec, path string) ([numColumns]boundColumn, error) {
	var bound [numColumns]boundColumn

	for i, name := range spec.Names() {
		leaf, ok := schema.Lookup(name)
		if !ok {
			return bound, &ColumnNotFoundError{Name: name, Path: path}
		}
		if leaf.MaxRepetitionLevel > 0 {
			return bound, &SchemaError{Column: name, Path: path, Message: "repeated columns are not supported"}
		}

		col := boundColumn{
			name:     name,
			role:     columnRoles[i],
			index:    leaf.ColumnIndex,
			kind:     leaf.Node.Type().Kind(),
			scale:    1,
			optional: leaf.MaxDefinitionLevel > 0,
		}

		if !roleAccepts(col.role, col.kind) {
			return bound, &SchemaError{
				Column:  name,
				Path:    path,
				Message: fmt.Sprintf("physical type %s cannot be read as %s", getPhysicalType(leaf.Node), col.role),
			}
		}

		// Dates are day counts: a DATE column or a plain integer.
		if col.role == roleDate {
			if lt := leaf.Node.Type().LogicalType(); lt != nil && lt.Date == nil && lt.Integer == nil {
				return bound, &SchemaError{
					Column:  name,
					Path:    path,
					Message: fmt.Sprintf("logical type %s cannot be read as date", getLogicalType(leaf.Node)),
				}
			}
		}

		if col.role == roleMeasure {
			if lt := leaf.Node.Type().LogicalType(); lt != nil && lt.Decimal != nil {
				if col.kind != parquet.Int32 && col.kind != parquet.Int64 {
					return bound, &SchemaError{Column: name, Path: path, Message: "only INT32 and INT64 decimals are supported"}
				}
				col.scale = math.Pow10(int(lt.Decimal.Scale))
			}
		}

		bound[i] = col
	}

	return bound, nil
}

// roleAccepts reports whether a physical type can be decoded for a role.
func roleAccepts(role columnRole, kind parquet.Kind) bool {
	switch role {
	case roleCategorical:
		return kind == parquet.ByteArray || kind == parquet.FixedLenByteArray || kind == parquet.Int32
	case roleMeasure:
		return kind == parquet.Double || kind == parquet.Float || kind == parquet.Int32 || kind == parquet.Int64
	case roleDate:
		return kind == parquet.Int32 || kind == parquet.Int64
	default:
		return false
	}
}

// SchemaInfo represents metadata about a single required column.
type SchemaInfo struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	PhysicalType string `json:"physical_type"`
	LogicalType  string `json:"logical_type"`
	Optional     bool   `json:"optional"`
}

// DescribeColumns validates spec against the file at path and reports how
// each required column will be read.
func DescribeColumns(path string, spec ColumnSpec) ([]SchemaInfo, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	schema := r.Schema()
	bound, err := bindColumns(schema, spec, path)
	if err != nil {
		return nil, err
	}

	infos := make([]SchemaInfo, 0, numColumns)
	for _, col := range bound {
		leaf, _ := schema.Lookup(col.name)
		infos = append(infos, SchemaInfo{
			Name:         col.name,
			Role:         col.role.String(),
			PhysicalType: getPhysicalType(leaf.Node),
			LogicalType:  getLogicalType(leaf.Node),
			Optional:     col.optional,
		})
	}
	return infos, nil
}

// getPhysicalType returns the physical type name of a Parquet node.
func getPhysicalType(node parquet.Node) string {
	if node.Type() == nil {
		return "GROUP"
	}

	switch node.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}

// getLogicalType returns the logical type name of a Parquet node.
func getLogicalType(node parquet.Node) string {
	if node.Type() == nil {
		return ""
	}

	logicalType := node.Type().LogicalType()
	if logicalType == nil {
		return ""
	}

	return logicalType.String()
}
